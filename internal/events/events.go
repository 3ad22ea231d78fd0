// Package events turns agent-loop progress into a named event stream
// delivered over a transport the loop does not own. Delivery is best
// effort: a dropped event never changes a turn's outcome.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Type names one kind of progress event
type Type string

// Events are emitted in this order during one turn: agent_thinking, then
// zero or more tool_starting/tool_complete/tool_error groups, then
// message_delta fragments, then message_done. A terminal error event may
// replace any of these.
const (
	TypeAgentThinking Type = "agent_thinking"
	TypeToolStarting  Type = "tool_starting"
	TypeToolComplete  Type = "tool_complete"
	TypeToolError     Type = "tool_error"
	TypeMessageDelta  Type = "message_delta"
	TypeMessageDone   Type = "message_done"
	TypeError         Type = "error"
)

// Event is one entry in a turn's progress stream. Seq orders events within
// a single turn; consumers reading over pub/sub use it to detect gaps.
type Event struct {
	Type      Type      `json:"type"`
	Seq       int64     `json:"seq"`
	Tool      string    `json:"tool,omitempty"`
	Message   string    `json:"message,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter delivers progress events for one user's stream. Implementations
// must not block the caller on delivery problems and must not return
// errors; delivery failures are logged and dropped.
type Emitter interface {
	Emit(ctx context.Context, userID uuid.UUID, event Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Emit(context.Context, uuid.UUID, Event) {}

// Sequence wraps an emitter and stamps each event with a counter starting
// at 1. One Sequence is created per turn.
type Sequence struct {
	next Emitter
	n    atomic.Int64
}

// NewSequence returns a per-turn sequencing wrapper. A nil next yields a
// sequence that discards events.
func NewSequence(next Emitter) *Sequence {
	if next == nil {
		next = Nop{}
	}
	return &Sequence{next: next}
}

func (s *Sequence) Emit(ctx context.Context, userID uuid.UUID, event Event) {
	event.Seq = s.n.Add(1)
	s.next.Emit(ctx, userID, event)
}

// Recorder captures events in memory. Test use only.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, _ uuid.UUID, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns just the recorded event types, in order
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
