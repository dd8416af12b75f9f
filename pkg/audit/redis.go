package audit

import (
	"context"
	"time"
)

// DefaultStream is the Redis stream key audit events are appended to.
const DefaultStream = "auth:audit"

// DefaultStreamMaxLen caps the stream at roughly this many entries.
const DefaultStreamMaxLen int64 = 100_000

// StreamAppender appends an entry to a Redis stream. *redis.Client from
// pkg/clients/redis satisfies it.
type StreamAppender interface {
	XAdd(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error)
}

// RedisStreamSink appends each event to a capped Redis stream, one field
// per Event attribute. Consumers read it with XREAD or consumer groups.
type RedisStreamSink struct {
	client StreamAppender
	stream string
	maxLen int64
}

// NewRedisStreamSink writes to stream (DefaultStream when empty), trimmed
// approximately to maxLen entries (DefaultStreamMaxLen when zero; a
// negative value disables trimming).
func NewRedisStreamSink(client StreamAppender, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	switch {
	case maxLen == 0:
		maxLen = DefaultStreamMaxLen
	case maxLen < 0:
		maxLen = 0
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Emit appends e. Errors come from the client unchanged.
func (s *RedisStreamSink) Emit(ctx context.Context, e Event) error {
	_, err := s.client.XAdd(ctx, s.stream, s.maxLen, streamValues(e))
	return err
}

func streamValues(e Event) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"outcome":    e.Outcome,
		"token_kind": e.TokenKind,
		"user_id":    e.UserID,
		"reason":     e.Reason,
		"mode":       e.Mode,
		"trace_id":   e.TraceID,
	}
}
