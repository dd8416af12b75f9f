package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-authcutover/pkg/audit"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/StricklySoft/stricklysoft-authcutover/pkg/auth"

// Provider is the single entry point request handlers use. It binds a
// SnapshotStore, a Validator and a clock.
type Provider struct {
	store     *SnapshotStore
	validator *Validator
	now       func() time.Time
	tracer    trace.Tracer
}

// NewProvider returns a Provider reading snapshots from store. A nil
// validator discards audit events and logs to slog.Default().
func NewProvider(store *SnapshotStore, validator *Validator) *Provider {
	if validator == nil {
		validator = NewValidator(nil, nil)
	}
	return &Provider{
		store:     store,
		validator: validator,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}
}

// WithClock replaces time.Now.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// WithTracerProvider replaces the global tracer provider.
func (p *Provider) WithTracerProvider(tp trace.TracerProvider) *Provider {
	p.tracer = tp.Tracer(tracerName)
	return p
}

// Resolve validates an Authorization header value. The snapshot and the
// clock are each read exactly once, so the whole call sees one
// configuration and one instant.
func (p *Provider) Resolve(ctx context.Context, header string) Outcome {
	ctx, span := p.tracer.Start(ctx, "auth.Resolve")
	defer span.End()

	snap := p.store.Load()
	now := p.now()
	out := p.validator.Validate(ctx, header, snap, now)

	result := audit.OutcomeAccepted
	if !out.Accepted {
		result = audit.OutcomeRejected
	}
	span.SetAttributes(
		attribute.String("auth.mode", string(ResolveMode(snap))),
		attribute.String("auth.token_kind", string(out.Kind)),
		attribute.String("auth.outcome", result),
	)
	if !out.Accepted {
		span.SetAttributes(attribute.String("auth.reason", string(out.Reason)))
		span.SetStatus(codes.Error, string(out.Reason))
	}
	return out
}
