package errors

// Code is a stable, machine-readable error identifier of the form
// CATEGORY_NNN. Codes are never reused for a different condition once
// published, since dashboards and alert rules key on them.
type Code string

const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required value is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a value has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationRange indicates a value is outside its allowed range.
	CodeValidationRange Code = "VAL_004"
)

// Authentication codes. Each token rejection reason has its own code so
// monitoring can tell "needs re-login" apart from "under attack".
const (
	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token's exp claim has passed.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates a malformed token, a malformed
	// Authorization header, or a signature that does not verify.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationLegacyDisallowed indicates a legacy token was
	// presented while legacy acceptance is closed (cutover passed or kill
	// switch off).
	CodeAuthenticationLegacyDisallowed Code = "AUTH_004"

	// CodeAuthenticationIssuer indicates the token's iss claim does not
	// match the configured issuer.
	CodeAuthenticationIssuer Code = "AUTH_005"

	// CodeAuthenticationNoSubject indicates the token verified but carries
	// no usable sub claim.
	CodeAuthenticationNoSubject Code = "AUTH_006"

	// CodeAuthenticationMissing indicates no credentials were presented.
	CodeAuthenticationMissing Code = "AUTH_007"
)

const (
	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a storage operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates configuration could not be loaded.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependency (database, cache)
	// cannot be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeUnavailableOverloaded indicates a bounded queue is full.
	CodeUnavailableOverloaded Code = "UNAVAIL_003"

	// CodeTimeout indicates a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a storage operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH" for
// "AUTH_002"). A code without an underscore is its own category.
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
