// Package testutil provides shared test helpers: error-code assertions,
// temporary files, and HMAC token minting for the legacy and new issuers.
//
// All helpers accept [testing.TB] and call t.Helper(). Functions that
// halt the test use [require]; functions that only record a failure use
// [assert].
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// Test keys. Both are at least 32 bytes and differ from each other.
const (
	LegacySecret = "legacy-signing-secret-0123456789abcdef"
	NewSecret    = "better-auth-signing-secret-0123456789"
	NewIssuer    = "better-auth"
)

// RequireErrorCode halts the test unless err is an *sserr.Error carrying
// code.
//
//	err := loader.Load(nil)
//	testutil.RequireErrorCode(t, err, sserr.CodeInternalConfiguration)
func RequireErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	ssErr, ok := sserr.AsError(err)
	require.True(t, ok, "expected *sserr.Error, got %T: %v", err, err)
	require.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
}

// AssertErrorCode is RequireErrorCode without halting, for table tests.
func AssertErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	ssErr, ok := sserr.AsError(err)
	if !assert.True(t, ok, "expected *sserr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
}

// TempFile writes content to name inside t.TempDir() with mode 0600 and
// returns the path.
func TempFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "failed to write temp file %s", path)
	return path
}

// AssertJSONNotContains marshals v and asserts the output does not
// contain unexpected. Use it to check redaction.
func AssertJSONNotContains(t testing.TB, v any, unexpected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.NotContains(t, string(data), unexpected,
		"expected JSON to NOT contain %q, got: %s", unexpected, string(data))
}

// SignHMAC signs claims with secret using the HMAC method named by alg
// (HS256, HS384 or HS512).
func SignHMAC(t testing.TB, secret, alg string, claims jwt.MapClaims) string {
	t.Helper()
	method := jwt.GetSigningMethod(alg)
	require.NotNil(t, method, "unknown signing method %q", alg)
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err, "failed to sign token")
	return token
}

// LegacyClaims returns {sub, iat, exp} with exp = now + ttl.
func LegacyClaims(sub string, now time.Time, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
}

// NewClaims returns {sub, iss, iat, exp} with exp = now + ttl.
func NewClaims(sub, iss string, now time.Time, ttl time.Duration) jwt.MapClaims {
	c := LegacyClaims(sub, now, ttl)
	c["iss"] = iss
	return c
}

// LegacyToken mints an HS256 legacy token signed with [LegacySecret].
func LegacyToken(t testing.TB, sub string, now time.Time, ttl time.Duration) string {
	t.Helper()
	return SignHMAC(t, LegacySecret, "HS256", LegacyClaims(sub, now, ttl))
}

// NewToken mints an HS256 new-issuer token signed with [NewSecret].
func NewToken(t testing.TB, sub string, now time.Time, ttl time.Duration) string {
	t.Helper()
	return SignHMAC(t, NewSecret, "HS256", NewClaims(sub, NewIssuer, now, ttl))
}

// Bearer formats token as an Authorization header value.
func Bearer(token string) string {
	return "Bearer " + token
}
