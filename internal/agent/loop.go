// Package agent drives the model-and-tools conversation loop for one chat
// turn: it sends the conversation to the model, executes any tool calls the
// model requests, feeds the results back, and repeats until the model
// produces plain text or the turn's bounds expire.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/events"
	"github.com/taskpilot/taskpilot/internal/models"
)

const (
	// DefaultTurnTimeout is the wall-clock budget for one whole turn,
	// model calls and tool executions included.
	DefaultTurnTimeout = 120 * time.Second
	// DefaultMaxIterations caps model round-trips within one turn
	DefaultMaxIterations = 10
)

// TurnResult is the outcome of a completed turn
type TurnResult struct {
	Response string
	Tasks    []models.TaskReference
}

// LoopConfig tunes the loop's bounds. Zero values take the defaults;
// ToolConcurrency below 1 means sequential execution.
type LoopConfig struct {
	TurnTimeout     time.Duration
	MaxIterations   int
	ToolConcurrency int
}

// Loop owns one configured agent loop. Safe for concurrent turns.
type Loop struct {
	client          CompletionService
	model           string
	registry        *Registry
	emitter         events.Emitter
	logger          *zap.Logger
	turnTimeout     time.Duration
	maxIterations   int
	toolConcurrency int
}

// NewLoop creates an agent loop
func NewLoop(client CompletionService, model string, registry *Registry, emitter events.Emitter, logger *zap.Logger, cfg LoopConfig) *Loop {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ToolConcurrency < 1 {
		cfg.ToolConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		client:          client,
		model:           model,
		registry:        registry,
		emitter:         emitter,
		logger:          logger,
		turnTimeout:     cfg.TurnTimeout,
		maxIterations:   cfg.MaxIterations,
		toolConcurrency: cfg.ToolConcurrency,
	}
}

// Run executes one conversation turn for the authenticated user. The
// history carries previously persisted user and assistant messages in
// chronological order; userMessage is the new, already sanitized input.
func (l *Loop) Run(ctx context.Context, userID uuid.UUID, history []*models.Message, userMessage string) (*TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.turnTimeout)
	defer cancel()

	// Each turn gets its own event sequence starting at 1.
	seq := events.NewSequence(l.emitter)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userMessage))

	tools := l.registry.Declarations()

	l.emit(ctx, seq, userID, events.Event{Type: events.TypeAgentThinking, Message: "Thinking..."})

	var collected []models.TaskReference

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		resp, err := l.client.Complete(ctx, openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(l.model),
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, l.fail(ctx, seq, userID, err)
		}

		if len(resp.Choices) == 0 {
			return nil, l.fail(ctx, seq, userID, errors.New("completion returned no choices"))
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			final := msg.Content
			l.emit(ctx, seq, userID, events.Event{Type: events.TypeMessageDelta, Delta: final})
			l.emit(ctx, seq, userID, events.Event{Type: events.TypeMessageDone})
			return &TurnResult{Response: final, Tasks: dedupeTasks(collected)}, nil
		}

		messages = append(messages, msg.ToParam())

		// Tool results go back in the exact order the model requested
		// them; some providers are order-sensitive.
		runs := l.executeToolCalls(ctx, seq, userID, msg.ToolCalls)
		for i, tc := range msg.ToolCalls {
			messages = append(messages, openai.ToolMessage(runs[i].payload, tc.ID))
			collected = append(collected, runs[i].tasks...)
		}
	}

	return nil, l.fail(ctx, seq, userID, ErrMaxIterations)
}

type toolRun struct {
	payload string
	tasks   []models.TaskReference
}

// executeToolCalls runs one model turn's tool calls, bounded by the
// configured concurrency, and returns their serialized results indexed to
// match the request order.
func (l *Loop) executeToolCalls(ctx context.Context, seq *events.Sequence, userID uuid.UUID, calls []openai.ChatCompletionMessageToolCallUnion) []toolRun {
	runs := make([]toolRun, len(calls))

	sem := make(chan struct{}, l.toolConcurrency)
	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc openai.ChatCompletionMessageToolCallUnion) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			runs[i] = l.runToolCall(ctx, seq, userID, tc)
		}(i, tc)
	}
	wg.Wait()

	return runs
}

func (l *Loop) runToolCall(ctx context.Context, seq *events.Sequence, userID uuid.UUID, tc openai.ChatCompletionMessageToolCallUnion) toolRun {
	name := tc.Function.Name

	l.emit(ctx, seq, userID, events.Event{Type: events.TypeToolStarting, Tool: name})

	start := time.Now()
	outcome := l.registry.Dispatch(ctx, userID, name, tc.Function.Arguments)

	payload, err := json.Marshal(outcome.Payload)
	if err != nil {
		l.logger.Error("tool_result_marshal_failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		payload = []byte(`{"success":false,"error":"internal error","message":"Something went wrong."}`)
		outcome.Success = false
	}

	l.logger.Info("tool_executed",
		zap.String("tool", name),
		zap.Bool("success", outcome.Success),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if outcome.Success {
		l.emit(ctx, seq, userID, events.Event{
			Type:    events.TypeToolComplete,
			Tool:    name,
			Message: payloadMessage(outcome.Payload),
		})
	} else {
		l.emit(ctx, seq, userID, events.Event{
			Type:  events.TypeToolError,
			Tool:  name,
			Error: payloadError(outcome.Payload),
		})
	}

	return toolRun{payload: string(payload), tasks: outcome.Tasks}
}

// fail classifies the turn's failure, emits the terminal error event, and
// returns the error the handler maps onto a status code.
func (l *Loop) fail(ctx context.Context, seq *events.Sequence, userID uuid.UUID, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("%w: %v", ErrTurnTimeout, err)
	}

	l.logger.Error("agent_turn_failed",
		zap.Error(err),
		zap.Bool("configuration", IsConfigurationError(err)),
		zap.Bool("timeout", IsTimeoutError(err)),
		zap.Bool("transient", IsTransientError(err)),
	)

	l.emit(ctx, seq, userID, events.Event{Type: events.TypeError, Error: publicErrorMessage(err)})
	return err
}

// publicErrorMessage maps loop failures onto text safe for the event
// stream. Provider error bodies stay in the logs.
func publicErrorMessage(err error) string {
	switch {
	case IsConfigurationError(err):
		return "The assistant is not configured."
	case IsTimeoutError(err):
		return "The request took too long. Please try again."
	case IsRateLimitError(err):
		return "The assistant is busy right now. Please try again shortly."
	default:
		return "Something went wrong while processing your request."
	}
}

func payloadMessage(payload map[string]any) string {
	if m, ok := payload["message"].(string); ok {
		return m
	}
	return ""
}

func payloadError(payload map[string]any) string {
	if e, ok := payload["error"].(string); ok {
		return e
	}
	return ""
}

func (l *Loop) emit(ctx context.Context, seq *events.Sequence, userID uuid.UUID, event events.Event) {
	event.Timestamp = time.Now().UTC()
	seq.Emit(ctx, userID, event)
}

func dedupeTasks(refs []models.TaskReference) []models.TaskReference {
	if len(refs) < 2 {
		return refs
	}
	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		out = append(out, ref)
	}
	return out
}
