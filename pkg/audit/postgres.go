package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *postgres.Client from pkg/clients/postgres
// satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS auth_audit_events (
	id          UUID PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	outcome     TEXT NOT NULL,
	token_kind  TEXT NOT NULL,
	user_id     TEXT,
	reason      TEXT,
	mode        TEXT NOT NULL,
	trace_id    TEXT
)`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS auth_audit_events_occurred_at_idx
	ON auth_audit_events (occurred_at)`

const insertEventSQL = `INSERT INTO auth_audit_events
	(id, occurred_at, outcome, token_kind, user_id, reason, mode, trace_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING`

// PostgresSink inserts each event into the auth_audit_events table.
type PostgresSink struct {
	db Execer
}

// NewPostgresSink returns a sink writing through db. Call
// [PostgresSink.EnsureSchema] once at startup.
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the table and its time index if missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, createIndexSQL)
	return err
}

// Emit inserts e. Re-emitting an event with the same ID is a no-op.
func (s *PostgresSink) Emit(ctx context.Context, e Event) error {
	_, err := s.db.Exec(ctx, insertEventSQL,
		e.ID, e.Timestamp, e.Outcome, e.TokenKind,
		nullable(e.UserID), nullable(e.Reason), e.Mode, nullable(e.TraceID))
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
