package auth

import (
	"time"

	"github.com/StricklySoft/stricklysoft-authcutover/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// MinSecretLength is the shortest HMAC key accepted for either issuer.
const MinSecretLength = 32

// EnvironmentProduction is the ENVIRONMENT value that makes the legacy
// secret mandatory.
const EnvironmentProduction = "production"

// Settings is the raw, loadable form of the authentication configuration.
// Load it with [LoadSettings] (or any [config.Loader]) and freeze it into
// a [Snapshot] with [NewSnapshot].
type Settings struct {
	// LegacySecret verifies tokens from the original issuer.
	LegacySecret Secret `json:"-" yaml:"-" env:"JWT_SECRET"`

	// LegacyAlgorithm is the HMAC algorithm of legacy tokens: HS256,
	// HS384 or HS512.
	LegacyAlgorithm string `json:"jwt_algorithm" yaml:"jwt_algorithm" env:"JWT_ALGORITHM" envDefault:"HS256"`

	// NewSecret verifies tokens from the replacement issuer (always HS256).
	NewSecret Secret `json:"-" yaml:"-" env:"BETTER_AUTH_SECRET"`

	// NewIssuer is the required "iss" claim of new tokens.
	NewIssuer string `json:"better_auth_issuer" yaml:"better_auth_issuer" env:"BETTER_AUTH_ISSUER" envDefault:"better-auth"`

	FeatureNewAuth bool `json:"feature_new_auth" yaml:"feature_new_auth" env:"FEATURE_NEW_AUTH"`
	RollbackAuth   bool `json:"rollback_auth" yaml:"rollback_auth" env:"ROLLBACK_AUTH"`
	FeatureNewChat bool `json:"feature_new_chat" yaml:"feature_new_chat" env:"FEATURE_NEW_CHAT"`
	RollbackChat   bool `json:"rollback_chat" yaml:"rollback_chat" env:"ROLLBACK_CHAT"`

	// LegacyTokensEnabled is the legacy kill switch. When false no token
	// is accepted through the legacy path, whatever the cutover date.
	LegacyTokensEnabled bool `json:"enable_legacy_tokens" yaml:"enable_legacy_tokens" env:"ENABLE_LEGACY_TOKENS" envDefault:"true"`

	// LegacyCutoff is the instant legacy tokens stop being attempted.
	// Nil means no time limit.
	LegacyCutoff *time.Time `json:"legacy_token_cutoff_date,omitempty" yaml:"legacy_token_cutoff_date,omitempty" env:"LEGACY_TOKEN_CUTOFF_DATE"`

	// ClockSkew is the leeway applied to exp and nbf.
	ClockSkew time.Duration `json:"auth_clock_skew" yaml:"auth_clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"0s"`

	Environment string `json:"environment" yaml:"environment" env:"ENVIRONMENT" envDefault:"development"`
}

// IsProduction reports whether Environment is "production".
func (s *Settings) IsProduction() bool {
	return s.Environment == EnvironmentProduction
}

// Validate checks the settings and returns a *sserr.Error with a VAL_
// code for the first problem found.
func (s *Settings) Validate() error {
	switch s.LegacyAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return sserr.Newf(sserr.CodeValidationFormat,
			"auth: JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", s.LegacyAlgorithm)
	}

	if s.IsProduction() && !s.LegacySecret.IsSet() {
		return sserr.New(sserr.CodeValidationRequired,
			"auth: JWT_SECRET is required in production")
	}
	if s.FeatureNewAuth && !s.NewSecret.IsSet() {
		return sserr.New(sserr.CodeValidationRequired,
			"auth: BETTER_AUTH_SECRET is required when FEATURE_NEW_AUTH is enabled")
	}
	if s.LegacySecret.IsSet() && len(s.LegacySecret.Value()) < MinSecretLength {
		return sserr.Newf(sserr.CodeValidationRange,
			"auth: JWT_SECRET must be at least %d bytes", MinSecretLength)
	}
	if s.NewSecret.IsSet() && len(s.NewSecret.Value()) < MinSecretLength {
		return sserr.Newf(sserr.CodeValidationRange,
			"auth: BETTER_AUTH_SECRET must be at least %d bytes", MinSecretLength)
	}
	if s.LegacySecret.IsSet() && s.LegacySecret == s.NewSecret {
		return sserr.New(sserr.CodeValidation,
			"auth: JWT_SECRET and BETTER_AUTH_SECRET must differ")
	}
	if s.NewIssuer == "" {
		return sserr.New(sserr.CodeValidationRequired,
			"auth: BETTER_AUTH_ISSUER must not be empty")
	}
	if s.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidationRange,
			"auth: AUTH_CLOCK_SKEW must be non-negative")
	}
	return nil
}

// LoadSettings loads Settings through loader.
func LoadSettings(loader *config.Loader) (Settings, error) {
	var s Settings
	if err := loader.Load(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSnapshot loads Settings through loader and freezes them.
func LoadSnapshot(loader *config.Loader) (*Snapshot, error) {
	s, err := LoadSettings(loader)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(s)
}
