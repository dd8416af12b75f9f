package auth

import "time"

// LegacyAllowed reports whether the legacy path may be attempted at now.
// The kill switch wins; with no cutover configured legacy tokens are
// allowed indefinitely; otherwise now must be strictly before cutoverAt.
func LegacyAllowed(now time.Time, cutoverAt *time.Time, legacyTokensEnabled bool) bool {
	if !legacyTokensEnabled {
		return false
	}
	if cutoverAt == nil {
		return true
	}
	return now.Before(*cutoverAt)
}
