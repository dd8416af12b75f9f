// Package errors defines the structured error type shared by every package
// in the auth cutover module. Each error carries a machine-readable code
// (CATEGORY_NNN), a message that is safe to return to clients, an optional
// cause and optional structured details.
//
// Token rejections are not errors: the validator returns them as values.
// An [Error] appears only where a caller asks for one (see auth.Outcome.Err)
// or where something outside the request path fails: configuration
// loading, audit storage, connectivity.
//
// # Categories
//
//	VAL_xxx     invalid configuration or input   (400)
//	AUTH_xxx    authentication rejected          (401)
//	INT_xxx     internal failure                 (500)
//	UNAVAIL_xxx dependency unavailable           (503)
//	TIMEOUT_xxx deadline exceeded                (504)
//
// # Usage
//
//	err := errors.Wrap(err, errors.CodeInternalDatabase, "audit: insert failed")
//
//	if errors.IsRetryable(err) {
//	    // back off and retry
//	}
package errors
