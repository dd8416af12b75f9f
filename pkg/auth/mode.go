package auth

// Mode is the effective authentication mode, derived from a Snapshot on
// every call.
type Mode string

const (
	// ModeDual tries the legacy issuer (while the cutover gate is open)
	// and then the new issuer.
	ModeDual Mode = "dual"
	// ModeLegacyOnly never attempts the new issuer.
	ModeLegacyOnly Mode = "legacy-only"
)

// ResolveMode applies flag precedence: rollback forces legacy-only, then
// the dual feature switch enables dual mode, and legacy-only is the
// default.
func ResolveMode(s *Snapshot) Mode {
	switch {
	case s.RollbackToLegacy():
		return ModeLegacyOnly
	case s.FeatureDualEnabled():
		return ModeDual
	default:
		return ModeLegacyOnly
	}
}
