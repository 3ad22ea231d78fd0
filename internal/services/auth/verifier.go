package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNoVerificationKey indicates neither a shared secret nor a JWKS URL is
// configured.
var ErrNoVerificationKey = errors.New("no token verification key configured")

// Claims is the verified identity extracted from a bearer token. The
// subject claim must carry the user's UUID.
type Claims struct {
	UserID uuid.UUID
	Email  string
}

// TokenVerifier verifies bearer JWTs with either a shared HMAC secret or
// keys fetched from a JWKS endpoint. JWKS wins when both are configured.
type TokenVerifier struct {
	secret      []byte
	jwksURL     string
	jwksManager *JWKSManager
}

// NewTokenVerifier creates a verifier from the configured credentials.
// At least one of secret and jwksURL must be set.
func NewTokenVerifier(secret, jwksURL string) (*TokenVerifier, error) {
	if secret == "" && jwksURL == "" {
		return nil, ErrNoVerificationKey
	}

	v := &TokenVerifier{
		jwksURL: jwksURL,
	}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if jwksURL != "" {
		v.jwksManager = NewJWKSManager()
	}
	return v, nil
}

// Verify parses and validates a token string, returning the claims
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	var (
		token jwt.Token
		err   error
	)

	switch {
	case v.jwksURL != "":
		keys, jwksErr := v.jwksManager.GetJWKS(ctx, v.jwksURL)
		if jwksErr != nil {
			return nil, jwksErr
		}
		token, err = jwt.Parse([]byte(tokenString), jwt.WithKeySet(keys), jwt.WithValidate(true))
	case v.secret != nil:
		token, err = jwt.Parse([]byte(tokenString), jwt.WithKey(jwa.HS256, v.secret), jwt.WithValidate(true))
	default:
		return nil, ErrNoVerificationKey
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("token subject is not a user id: %w", err)
	}

	claims := &Claims{UserID: userID}
	if email, ok := token.Get("email"); ok {
		if emailStr, ok := email.(string); ok {
			claims.Email = emailStr
		}
	}

	return claims, nil
}
