package auth

import (
	"log/slog"
	"time"
)

// Feature names a switch pair with feature/rollback precedence.
type Feature string

const (
	// FeatureAuth gates dual-credential validation.
	FeatureAuth Feature = "auth"
	// FeatureChat gates the chat assistant. It is resolved here so every
	// flag shares one precedence rule.
	FeatureChat Feature = "chat"
)

type featureSwitch struct {
	enabled  bool
	rollback bool
}

// Snapshot is an immutable view of the authentication configuration.
// Readers hold one Snapshot for the whole of a validation call; a reload
// replaces the Snapshot, never its fields.
type Snapshot struct {
	legacySecret        Secret
	legacyAlgorithm     string
	newSecret           Secret
	newIssuer           string
	features            map[Feature]featureSwitch
	legacyTokensEnabled bool
	cutoverAt           *time.Time
	clockSkew           time.Duration
	environment         string
}

// NewSnapshot validates s and freezes it. Invalid settings fail here, at
// load time, rather than on a request.
func NewSnapshot(s Settings) (*Snapshot, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		legacySecret:    s.LegacySecret,
		legacyAlgorithm: s.LegacyAlgorithm,
		newSecret:       s.NewSecret,
		newIssuer:       s.NewIssuer,
		features: map[Feature]featureSwitch{
			FeatureAuth: {enabled: s.FeatureNewAuth, rollback: s.RollbackAuth},
			FeatureChat: {enabled: s.FeatureNewChat, rollback: s.RollbackChat},
		},
		legacyTokensEnabled: s.LegacyTokensEnabled,
		clockSkew:           s.ClockSkew,
		environment:         s.Environment,
	}
	if s.LegacyCutoff != nil {
		at := s.LegacyCutoff.UTC()
		snap.cutoverAt = &at
	}
	return snap, nil
}

// NewIssuer returns the required issuer of new tokens.
func (s *Snapshot) NewIssuer() string { return s.newIssuer }

// LegacyAlgorithm returns the HMAC algorithm of legacy tokens.
func (s *Snapshot) LegacyAlgorithm() string { return s.legacyAlgorithm }

// LegacyTokensEnabled returns the legacy kill switch.
func (s *Snapshot) LegacyTokensEnabled() bool { return s.legacyTokensEnabled }

// ClockSkew returns the exp/nbf leeway.
func (s *Snapshot) ClockSkew() time.Duration { return s.clockSkew }

// Environment returns the deployment environment name.
func (s *Snapshot) Environment() string { return s.environment }

// CutoverAt returns the legacy cutover instant, if one is configured.
func (s *Snapshot) CutoverAt() (time.Time, bool) {
	if s.cutoverAt == nil {
		return time.Time{}, false
	}
	return *s.cutoverAt, true
}

// FeatureDualEnabled returns the FEATURE_NEW_AUTH switch as loaded.
func (s *Snapshot) FeatureDualEnabled() bool { return s.features[FeatureAuth].enabled }

// RollbackToLegacy returns the ROLLBACK_AUTH switch as loaded.
func (s *Snapshot) RollbackToLegacy() bool { return s.features[FeatureAuth].rollback }

// FeatureEnabled resolves a feature: its rollback switch wins, then its
// feature switch, else disabled. Unknown features are disabled.
func (s *Snapshot) FeatureEnabled(f Feature) bool {
	sw := s.features[f]
	if sw.rollback {
		return false
	}
	return sw.enabled
}

// LegacyAllowed applies the cutover gate to this snapshot.
func (s *Snapshot) LegacyAllowed(now time.Time) bool {
	return LegacyAllowed(now, s.cutoverAt, s.legacyTokensEnabled)
}

// LogValue implements [slog.LogValuer]. Secrets appear only as whether
// they are set.
func (s *Snapshot) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("mode", string(ResolveMode(s))),
		slog.Bool("feature_new_auth", s.FeatureDualEnabled()),
		slog.Bool("rollback_auth", s.RollbackToLegacy()),
		slog.Bool("legacy_tokens_enabled", s.legacyTokensEnabled),
		slog.String("legacy_algorithm", s.legacyAlgorithm),
		slog.String("new_issuer", s.newIssuer),
		slog.Bool("legacy_secret_set", s.legacySecret.IsSet()),
		slog.Bool("new_secret_set", s.newSecret.IsSet()),
		slog.String("environment", s.environment),
	}
	if s.cutoverAt != nil {
		attrs = append(attrs, slog.Time("cutover_at", *s.cutoverAt))
	}
	return slog.GroupValue(attrs...)
}
