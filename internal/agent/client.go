package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	logpkg "github.com/taskpilot/taskpilot/internal/logger"
)

const (
	// DefaultModel is the model used when none is configured
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL is the default OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.openai.com/v1"
	// requestTimeout bounds a single completion round-trip. The turn as a
	// whole is bounded separately by the loop.
	requestTimeout = 90 * time.Second
)

// CompletionService is the slice of the provider client the loop depends
// on. Kept narrow so tests can drive the loop with fakes.
type CompletionService interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Client wraps the provider SDK. Constructed once at process start and
// passed by reference; there is no package-level client state.
type Client struct {
	client     openai.Client
	model      string
	configured bool
	logger     *zap.Logger
	debugMode  bool
}

// NewClient creates a provider client. An empty API key still yields a
// usable value whose calls fail with ErrNotConfigured, so the rest of the
// service can start and report the condition per request.
func NewClient(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: requestTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &Client{
		client:     client,
		model:      model,
		configured: apiKey != "",
		logger:     logger,
		debugMode:  debugMode,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Complete sends one chat completion request
func (c *Client) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	if c.debugMode {
		c.logger.Debug("llm_api_request",
			zap.String("model", c.model),
			zap.Int("message_count", len(params.Messages)),
			zap.Int("tool_count", len(params.Tools)),
		)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)

	if err != nil {
		if c.debugMode {
			c.logger.Debug("llm_api_error",
				zap.String("model", c.model),
				zap.String("error", logpkg.SanitizeError(err)),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("completion failed: %w", apiErr)
		}
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	if c.debugMode {
		c.logger.Debug("llm_api_response",
			zap.String("model", c.model),
			zap.Int("tool_call_count", len(resp.Choices[0].Message.ToolCalls)),
			zap.String("content", logpkg.SanitizeDebugContent(resp.Choices[0].Message.Content)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return resp, nil
}

var _ CompletionService = (*Client)(nil)
