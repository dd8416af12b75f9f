package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StricklySoft/stricklysoft-authcutover/pkg/audit"
	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// maxTokenSize caps the bearer token length at 8 KiB.
const maxTokenSize = 8192

// newAlgorithm is the only algorithm accepted on the new path.
const newAlgorithm = "HS256"

// bearerToken splits an Authorization header value into its token. The
// value must be exactly two whitespace-separated fields with a
// case-insensitive "Bearer" scheme.
func bearerToken(header string) (string, Reason) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 0:
		return "", ReasonMissingHeader
	case len(parts) != 2, !strings.EqualFold(parts[0], "Bearer"):
		return "", ReasonMalformedHeader
	case len(parts[1]) > maxTokenSize:
		return "", ReasonMalformedHeader
	}
	return parts[1], ""
}

// ---------------------------------------------------------------------------
// Evaluate: the pure decision
// ---------------------------------------------------------------------------

// Evaluate validates an Authorization header value against snap at now
// and returns the resulting [Outcome]. It is pure: it does no I/O, never
// reads the clock, and the same inputs always give the same Outcome.
// snap must not be nil.
//
// The method performs the following steps:
//  1. Extracts the bearer token. An empty header is
//     [ReasonMissingHeader]; any other shape, or a token over 8 KiB, is
//     [ReasonMalformedHeader].
//  2. Evaluates the cutover gate for now.
//  3. Resolves the [Mode] from the snapshot flags.
//  4. In legacy-only mode, rejects with [ReasonLegacyDisallowed] when the
//     gate is closed, and otherwise returns the legacy path's result,
//     including its specific rejection reason.
//  5. In dual mode, tries the legacy path while the gate is open. Any
//     legacy failure, a verified token without a subject included, falls
//     through to the new path, whose result is final and carries
//     [TokenKindNew].
//
// Header failures carry [TokenKindNone]. Rejections never say which path
// came closest to accepting the token.
func Evaluate(header string, snap *Snapshot, now time.Time) Outcome {
	token, reason := bearerToken(header)
	if reason != "" {
		return Reject(reason, TokenKindNone)
	}

	legacyOpen := snap.LegacyAllowed(now)

	if ResolveMode(snap) == ModeLegacyOnly {
		if !legacyOpen {
			return Reject(ReasonLegacyDisallowed, TokenKindNone)
		}
		userID, reason := verifyLegacy(token, snap, now)
		if reason != "" {
			return Reject(reason, TokenKindLegacy)
		}
		return Accept(userID, TokenKindLegacy)
	}

	if legacyOpen {
		if userID, reason := verifyLegacy(token, snap, now); reason == "" {
			return Accept(userID, TokenKindLegacy)
		}
	}

	userID, reason := verifyNew(token, snap, now)
	if reason != "" {
		return Reject(reason, TokenKindNew)
	}
	return Accept(userID, TokenKindNew)
}

func verifyLegacy(token string, snap *Snapshot, now time.Time) (string, Reason) {
	return verify(token, snap.legacySecret, snap.legacyAlgorithm, "", snap.clockSkew, now)
}

func verifyNew(token string, snap *Snapshot, now time.Time) (string, Reason) {
	return verify(token, snap.newSecret, newAlgorithm, snap.newIssuer, snap.clockSkew, now)
}

// verify checks token and returns its subject or a rejection reason.
// Checks run in a fixed order: signature and algorithm, then issuer (when
// issuer is non-empty), then expiry and other time claims, then subject.
// The parser verifies the signature before it validates claims, so a
// claims error always means the signature was good.
func verify(token string, key Secret, method, issuer string, skew time.Duration, now time.Time) (string, Reason) {
	if !key.IsSet() {
		return "", ReasonSignatureInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(skew),
	)
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(key.Value()), nil
	})
	if err != nil && !errors.Is(err, jwt.ErrTokenInvalidClaims) {
		return "", ReasonSignatureInvalid
	}

	if issuer != "" {
		iss, issErr := claims.GetIssuer()
		if issErr != nil || iss != issuer {
			return "", ReasonIssuerMismatch
		}
	}

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ReasonExpired
		}
		return "", ReasonSignatureInvalid
	}

	sub, subErr := claims.GetSubject()
	if subErr != nil || sub == "" {
		return "", ReasonNoSubjectClaim
	}
	return sub, ""
}

// ---------------------------------------------------------------------------
// Validator: Evaluate plus audit and logging
// ---------------------------------------------------------------------------

// Validator runs [Evaluate] and reports every outcome. Each call produces
// exactly one audit event and one log record, so the audit trail can be
// reconciled against request counts.
//
// Log levels follow the outcome:
//   - legacy acceptances log at WARN, keeping the remaining legacy
//     population visible during the migration;
//   - new-token acceptances log at DEBUG;
//   - rejections log at INFO with the reason.
//
// Audit events carry the trace ID from ctx when a span is active. The
// outcome returned to the caller never depends on the sink.
//
// Validator is safe for concurrent use by multiple goroutines.
type Validator struct {
	sink   audit.Sink
	logger *slog.Logger
}

// NewValidator returns a Validator emitting to sink (audit.Discard when
// nil) and logging to logger (slog.Default() when nil). The sink is
// called synchronously; wrap storage sinks in an [audit.AsyncSink].
func NewValidator(sink audit.Sink, logger *slog.Logger) *Validator {
	if sink == nil {
		sink = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{sink: sink, logger: logger}
}

// Validate evaluates header against snap at now and records the outcome.
// Audit failures are logged and never change the outcome. Drops from a
// full [audit.AsyncSink] are not logged here; the sink reports them.
func (v *Validator) Validate(ctx context.Context, header string, snap *Snapshot, now time.Time) Outcome {
	out := Evaluate(header, snap, now)
	mode := ResolveMode(snap)

	switch {
	case out.Accepted && out.Kind == TokenKindLegacy:
		v.logger.WarnContext(ctx, "auth: legacy token used",
			"user_id", out.UserID, "mode", mode)
	case out.Accepted:
		v.logger.DebugContext(ctx, "auth: token accepted",
			"user_id", out.UserID, "token_kind", out.Kind, "mode", mode)
	default:
		v.logger.InfoContext(ctx, "auth: token rejected",
			"reason", out.Reason, "token_kind", out.Kind, "mode", mode)
	}

	e := audit.NewEvent(now)
	e.TokenKind = string(out.Kind)
	e.Mode = string(mode)
	if out.Accepted {
		e.Outcome = audit.OutcomeAccepted
		e.UserID = out.UserID
	} else {
		e.Outcome = audit.OutcomeRejected
		e.Reason = string(out.Reason)
	}
	if traceID, ok := TraceIDFromContext(ctx); ok {
		e.TraceID = traceID
	}
	if err := v.sink.Emit(ctx, e); err != nil && !sserr.HasCode(err, sserr.CodeUnavailableOverloaded) {
		v.logger.WarnContext(ctx, "auth: audit emit failed", "error", err, "event_id", e.ID)
	}
	return out
}
