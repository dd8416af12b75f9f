// Package audit records one event per authentication attempt. Sinks are
// write-only: nothing in the request path ever reads events back.
//
// Storage-backed sinks ([RedisStreamSink], [PostgresSink]) should sit
// behind an [AsyncSink] so a slow or unavailable store never delays a
// request:
//
//	store := audit.NewPostgresSink(pg)
//	sink := audit.NewAsyncSink(audit.Multi(audit.NewSlogSink(logger), store), audit.AsyncConfig{}, logger)
//	defer sink.Close(ctx)
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Event describes a single validation attempt. Reason is empty for
// accepted attempts and UserID is empty for rejected ones.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	TokenKind string    `json:"token_kind"`
	UserID    string    `json:"user_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Mode      string    `json:"mode"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// NewEvent returns an Event with a fresh UUID and at converted to UTC.
func NewEvent(at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
	}
}

// Accepted reports whether the event records an accepted attempt.
func (e Event) Accepted() bool {
	return e.Outcome == OutcomeAccepted
}

// Sink receives audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
