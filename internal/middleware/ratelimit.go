package middleware

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/taskpilot/taskpilot/internal/request"
)

// DefaultRequestRate is the per-client HTTP request ceiling. This guards
// the transport against bursts; the daily conversation quota is enforced
// separately inside the chat flow.
const DefaultRequestRate = "10-S"

// RateLimit returns request-rate middleware backed by Redis via
// ulule/limiter. Authenticated requests are keyed by user id so clients
// behind one NAT do not share a bucket; others fall back to client IP.
func RateLimit(redisClient *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRequestRate
	}

	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}

	store, err := redisstore.NewStore(redisClient)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(store, parsed)
	keyGetter := func(r *http.Request) string {
		if user := request.UserFromContext(r); user != nil {
			return "user:" + user.ID.String()
		}
		return "ip:" + request.ClientIP(r)
	}

	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
