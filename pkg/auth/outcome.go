package auth

import (
	"fmt"

	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// TokenKind names the validation path an outcome came from.
type TokenKind string

const (
	TokenKindLegacy TokenKind = "legacy"
	TokenKindNew    TokenKind = "new"
	// TokenKindNone marks outcomes decided before any path was attempted.
	TokenKindNone TokenKind = "none"
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonMissingHeader    Reason = "missing_header"
	ReasonMalformedHeader  Reason = "malformed_header"
	ReasonSignatureInvalid Reason = "signature_invalid"
	ReasonExpired          Reason = "expired"
	ReasonLegacyDisallowed Reason = "legacy_disallowed"
	ReasonIssuerMismatch   Reason = "issuer_mismatch"
	ReasonNoSubjectClaim   Reason = "no_subject_claim"
)

// Code maps the reason to its AUTH_ error code.
func (r Reason) Code() sserr.Code {
	switch r {
	case ReasonMissingHeader:
		return sserr.CodeAuthenticationMissing
	case ReasonExpired:
		return sserr.CodeAuthenticationExpired
	case ReasonMalformedHeader, ReasonSignatureInvalid:
		return sserr.CodeAuthenticationInvalid
	case ReasonLegacyDisallowed:
		return sserr.CodeAuthenticationLegacyDisallowed
	case ReasonIssuerMismatch:
		return sserr.CodeAuthenticationIssuer
	case ReasonNoSubjectClaim:
		return sserr.CodeAuthenticationNoSubject
	default:
		return sserr.CodeAuthentication
	}
}

// Outcome is the result of one validation call: either accepted with a
// user ID, or rejected with a Reason. Kind is set in both cases.
type Outcome struct {
	Accepted bool
	UserID   string
	Kind     TokenKind
	Reason   Reason
}

// Accept returns an accepted Outcome.
func Accept(userID string, kind TokenKind) Outcome {
	return Outcome{Accepted: true, UserID: userID, Kind: kind}
}

// Reject returns a rejected Outcome.
func Reject(reason Reason, kind TokenKind) Outcome {
	return Outcome{Reason: reason, Kind: kind}
}

// Err returns nil for an accepted outcome and an AUTH_ *sserr.Error
// otherwise, for callers that propagate rejections as errors.
func (o Outcome) Err() error {
	if o.Accepted {
		return nil
	}
	return sserr.Newf(o.Reason.Code(), "auth: authentication failed (%s)", o.Reason).
		WithDetail("token_kind", string(o.Kind))
}

func (o Outcome) String() string {
	if o.Accepted {
		return fmt.Sprintf("accepted(user=%s, kind=%s)", o.UserID, o.Kind)
	}
	return fmt.Sprintf("rejected(reason=%s, kind=%s)", o.Reason, o.Kind)
}
