package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-authcutover/internal/testutil"
	"github.com/StricklySoft/stricklysoft-authcutover/pkg/audit"
)

const otherSecret = "attacker-controlled-secret-0123456789"

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		token  string
		reason Reason
	}{
		{"empty", "", "", ReasonMissingHeader},
		{"whitespace only", "   \t", "", ReasonMissingHeader},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", ""},
		{"lowercase scheme", "bearer abc", "abc", ""},
		{"extra spaces", "  Bearer   abc  ", "abc", ""},
		{"scheme only", "Bearer", "", ReasonMalformedHeader},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", ReasonMalformedHeader},
		{"token without scheme", "abc.def.ghi", "", ReasonMalformedHeader},
		{"three fields", "Bearer abc def", "", ReasonMalformedHeader},
		{"oversized", "Bearer " + strings.Repeat("a", maxTokenSize+1), "", ReasonMalformedHeader},
		{"max size", "Bearer " + strings.Repeat("a", maxTokenSize), strings.Repeat("a", maxTokenSize), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			token, reason := bearerToken(tt.header)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestEvaluate_LegacyTokenInDualMode(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.LegacyCutoff = timePtr(testNow.Add(7 * 24 * time.Hour))

	got := Evaluate(legacyHeader(t, "alice"), mustSnapshot(t, s), testNow)
	assert.Equal(t, Accept("alice", TokenKindLegacy), got)
}

func TestEvaluate_LegacyTokenUnderRollback(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.LegacyCutoff = timePtr(testNow.Add(7 * 24 * time.Hour))
	s.RollbackAuth = true

	got := Evaluate(legacyHeader(t, "alice"), mustSnapshot(t, s), testNow)
	assert.Equal(t, Accept("alice", TokenKindLegacy), got)
}

func TestEvaluate_NewTokenUnderRollbackIsRejected(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.RollbackAuth = true
	snap := mustSnapshot(t, s)

	got := Evaluate(newHeader(t, "bob"), snap, testNow)
	assert.False(t, got.Accepted)
	assert.Equal(t, TokenKindLegacy, got.Kind, "only the legacy path runs")
	assert.Equal(t, ReasonSignatureInvalid, got.Reason)
}

func TestEvaluate_LegacyTokenWithKillSwitch(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.LegacyTokensEnabled = false
	snap := mustSnapshot(t, s)

	got := Evaluate(legacyHeader(t, "alice"), snap, testNow)
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), got)

	// A legacy-shaped token signed with the new key reaches the issuer check.
	shared := testutil.SignHMAC(t, testutil.NewSecret, "HS256", testutil.LegacyClaims("alice", testNow, time.Hour))
	got = Evaluate(testutil.Bearer(shared), snap, testNow)
	assert.Equal(t, Reject(ReasonIssuerMismatch, TokenKindNew), got)
}

func TestEvaluate_MissingHeader(t *testing.T) {
	t.Parallel()

	got := Evaluate("", mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonMissingHeader, TokenKindNone), got)
}

func TestEvaluate_ExpiredNewToken(t *testing.T) {
	t.Parallel()

	token := testutil.NewToken(t, "u1", testNow.Add(-65*time.Minute), time.Hour)
	got := Evaluate(testutil.Bearer(token), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonExpired, TokenKindNew), got)
}

func TestEvaluate_NewTokenRoundTrip(t *testing.T) {
	t.Parallel()

	got := Evaluate(newHeader(t, "u1"), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Accept("u1", TokenKindNew), got)
}

// ---------------------------------------------------------------------------
// Boundaries
// ---------------------------------------------------------------------------

func TestEvaluate_AtCutoverLegacyIsNotAttempted(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.LegacyCutoff = timePtr(testNow)
	header := legacyHeader(t, "alice")

	got := Evaluate(header, mustSnapshot(t, s), testNow)
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), got, "dual mode goes straight to the new path")

	got = Evaluate(header, mustSnapshot(t, s), testNow.Add(-time.Second))
	assert.Equal(t, Accept("alice", TokenKindLegacy), got, "one second earlier the legacy path runs")

	s.FeatureNewAuth = false
	got = Evaluate(header, mustSnapshot(t, s), testNow)
	assert.Equal(t, Reject(ReasonLegacyDisallowed, TokenKindNone), got, "legacy-only mode has nothing left to try")
}

func TestEvaluate_NoCutoverAcceptsLegacyIndefinitely(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())
	later := testNow.AddDate(10, 0, 0)
	token := testutil.LegacyToken(t, "alice", later, time.Hour)

	got := Evaluate(testutil.Bearer(token), snap, later)
	assert.Equal(t, Accept("alice", TokenKindLegacy), got)
}

func TestEvaluate_EmptySubject(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())
	token := testutil.SignHMAC(t, testutil.NewSecret, "HS256", testutil.NewClaims("", testutil.NewIssuer, testNow, time.Hour))

	got := Evaluate(testutil.Bearer(token), snap, testNow)
	assert.Equal(t, Reject(ReasonNoSubjectClaim, TokenKindNew), got)
}

func TestEvaluate_NonStringSubject(t *testing.T) {
	t.Parallel()

	claims := testutil.NewClaims("", testutil.NewIssuer, testNow, time.Hour)
	claims["sub"] = 42
	token := testutil.SignHMAC(t, testutil.NewSecret, "HS256", claims)

	got := Evaluate(testutil.Bearer(token), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonNoSubjectClaim, TokenKindNew), got)
}

// A verified legacy token without a subject falls through to the new path
// in dual mode, and is rejected with its own reason in legacy-only mode.
func TestEvaluate_LegacyTokenWithoutSubject(t *testing.T) {
	t.Parallel()

	claims := testutil.LegacyClaims("", testNow, time.Hour)
	delete(claims, "sub")
	header := testutil.Bearer(testutil.SignHMAC(t, testutil.LegacySecret, "HS256", claims))

	s := dualSettings()
	got := Evaluate(header, mustSnapshot(t, s), testNow)
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), got)

	s.FeatureNewAuth = false
	got = Evaluate(header, mustSnapshot(t, s), testNow)
	assert.Equal(t, Reject(ReasonNoSubjectClaim, TokenKindLegacy), got)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestEvaluate_LegacyOnlyReasons(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.FeatureNewAuth = false
	snap := mustSnapshot(t, s)

	expired := testutil.LegacyToken(t, "alice", testNow.Add(-2*time.Hour), time.Hour)
	forged := testutil.SignHMAC(t, otherSecret, "HS256", testutil.LegacyClaims("alice", testNow, time.Hour))

	assert.Equal(t, Reject(ReasonExpired, TokenKindLegacy), Evaluate(testutil.Bearer(expired), snap, testNow))
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindLegacy), Evaluate(testutil.Bearer(forged), snap, testNow))
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindLegacy), Evaluate("Bearer not-a-jwt", snap, testNow))
}

func TestEvaluate_IssuerCheckedBeforeExpiry(t *testing.T) {
	t.Parallel()

	claims := testutil.NewClaims("u1", "someone-else", testNow.Add(-2*time.Hour), time.Hour)
	token := testutil.SignHMAC(t, testutil.NewSecret, "HS256", claims)

	got := Evaluate(testutil.Bearer(token), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonIssuerMismatch, TokenKindNew), got)
}

func TestEvaluate_SignatureCheckedBeforeIssuer(t *testing.T) {
	t.Parallel()

	claims := testutil.NewClaims("u1", "someone-else", testNow, time.Hour)
	token := testutil.SignHMAC(t, otherSecret, "HS256", claims)

	got := Evaluate(testutil.Bearer(token), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), got)
}

func TestEvaluate_TamperedPayload(t *testing.T) {
	t.Parallel()

	alice := strings.Split(testutil.NewToken(t, "alice", testNow, time.Hour), ".")
	admin := strings.Split(testutil.NewToken(t, "admin", testNow, time.Hour), ".")
	spliced := alice[0] + "." + admin[1] + "." + alice[2]

	got := Evaluate(testutil.Bearer(spliced), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), got)
}

func TestEvaluate_RejectsUnexpectedAlgorithms(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())
	claims := testutil.NewClaims("u1", testutil.NewIssuer, testNow, time.Hour)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512 := testutil.SignHMAC(t, testutil.NewSecret, "HS512", claims)

	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), Evaluate(testutil.Bearer(none), snap, testNow))
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), Evaluate(testutil.Bearer(hs512), snap, testNow))
}

func TestEvaluate_ConfiguredLegacyAlgorithm(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.FeatureNewAuth = false
	s.LegacyAlgorithm = "HS384"
	snap := mustSnapshot(t, s)

	hs384 := testutil.SignHMAC(t, testutil.LegacySecret, "HS384", testutil.LegacyClaims("alice", testNow, time.Hour))
	assert.Equal(t, Accept("alice", TokenKindLegacy), Evaluate(testutil.Bearer(hs384), snap, testNow))
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindLegacy), Evaluate(legacyHeader(t, "alice"), snap, testNow))
}

func TestEvaluate_OtherClaimFailuresAreSignatureInvalid(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())

	noExp := testutil.NewClaims("u1", testutil.NewIssuer, testNow, time.Hour)
	delete(noExp, "exp")
	notYet := testutil.NewClaims("u1", testutil.NewIssuer, testNow, time.Hour)
	notYet["nbf"] = jwt.NewNumericDate(testNow.Add(10 * time.Minute))

	for name, claims := range map[string]jwt.MapClaims{"missing exp": noExp, "nbf in future": notYet} {
		token := testutil.SignHMAC(t, testutil.NewSecret, "HS256", claims)
		assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), Evaluate(testutil.Bearer(token), snap, testNow), name)
	}
}

func TestEvaluate_ClockSkew(t *testing.T) {
	t.Parallel()

	token := testutil.NewToken(t, "u1", testNow.Add(-time.Hour-10*time.Second), time.Hour)
	header := testutil.Bearer(token)

	s := dualSettings()
	assert.Equal(t, Reject(ReasonExpired, TokenKindNew), Evaluate(header, mustSnapshot(t, s), testNow))

	s.ClockSkew = 30 * time.Second
	assert.Equal(t, Accept("u1", TokenKindNew), Evaluate(header, mustSnapshot(t, s), testNow))
}

func TestEvaluate_UnsetSecretNeverVerifies(t *testing.T) {
	t.Parallel()

	s := dualSettings()
	s.LegacySecret = ""
	snap := mustSnapshot(t, s)

	unsigned := testutil.SignHMAC(t, "", "HS256", testutil.LegacyClaims("alice", testNow, time.Hour))
	assert.Equal(t, Reject(ReasonSignatureInvalid, TokenKindNew), Evaluate(testutil.Bearer(unsigned), snap, testNow))
	assert.Equal(t, Accept("bob", TokenKindNew), Evaluate(newHeader(t, "bob"), snap, testNow))
}

// ---------------------------------------------------------------------------
// Invariants
// ---------------------------------------------------------------------------

func TestEvaluate_KillSwitchNeverAcceptsLegacy(t *testing.T) {
	t.Parallel()

	header := legacyHeader(t, "alice")
	cutovers := []*time.Time{nil, timePtr(testNow.AddDate(1, 0, 0)), timePtr(testNow.AddDate(-1, 0, 0))}

	for _, cutover := range cutovers {
		for _, feature := range []bool{false, true} {
			for _, rollback := range []bool{false, true} {
				s := dualSettings()
				s.LegacyTokensEnabled = false
				s.LegacyCutoff = cutover
				s.FeatureNewAuth = feature
				s.RollbackAuth = rollback

				got := Evaluate(header, mustSnapshot(t, s), testNow)
				assert.False(t, got.Accepted && got.Kind == TokenKindLegacy,
					"feature=%v rollback=%v cutover=%v: %s", feature, rollback, cutover, got)
			}
		}
	}
}

func TestEvaluate_NewPathIssuerInvariant(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())

	for _, iss := range []string{testutil.NewIssuer, "", "better-auth ", "Better-Auth", "legacy", "https://better-auth"} {
		claims := testutil.NewClaims("u1", iss, testNow, time.Hour)
		if iss == "" {
			delete(claims, "iss")
		}
		token := testutil.SignHMAC(t, testutil.NewSecret, "HS256", claims)
		got := Evaluate(testutil.Bearer(token), snap, testNow)

		if iss == snap.NewIssuer() {
			assert.Equal(t, Accept("u1", TokenKindNew), got)
		} else {
			assert.Equal(t, Reject(ReasonIssuerMismatch, TokenKindNew), got, "iss=%q", iss)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t, dualSettings())
	headers := []string{
		"",
		"Basic x",
		legacyHeader(t, "alice"),
		newHeader(t, "bob"),
		testutil.Bearer(testutil.NewToken(t, "u1", testNow.Add(-2*time.Hour), time.Hour)),
	}

	for _, h := range headers {
		assert.Equal(t, Evaluate(h, snap, testNow), Evaluate(h, snap, testNow))
	}
}

// Evaluate does no I/O, so a batch of calls is bounded by HMAC cost
// alone. One HS256 verification takes microseconds, which rules out a
// millisecond budget for the whole batch; evaluateBatchBudget is loose
// enough for slow CI runners and still fails on any blocking call. The
// benchmarks below report the actual per-call cost.
const (
	evaluateBatchSize   = 10_000
	evaluateBatchBudget = 5 * time.Second
)

func TestEvaluate_TimingBound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing bound in short mode")
	}

	s := dualSettings()
	s.LegacyCutoff = timePtr(testNow.Add(time.Hour))
	snap := mustSnapshot(t, s)
	header := newHeader(t, "u1")

	start := time.Now()
	for i := 0; i < evaluateBatchSize; i++ {
		if out := Evaluate(header, snap, testNow); !out.Accepted {
			t.Fatalf("iteration %d: %s", i, out)
		}
	}
	assert.Less(t, time.Since(start), evaluateBatchBudget,
		"%d Evaluate calls exceeded %s", evaluateBatchSize, evaluateBatchBudget)
}

func BenchmarkEvaluate_NewTokenInDualMode(b *testing.B) {
	snap := mustSnapshot(b, dualSettings())
	header := newHeader(b, "u1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Evaluate(header, snap, testNow)
	}
}

func BenchmarkEvaluate_LegacyToken(b *testing.B) {
	snap := mustSnapshot(b, dualSettings())
	header := legacyHeader(b, "alice")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Evaluate(header, snap, testNow)
	}
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

func TestValidator_EmitsOneEventPerCall(t *testing.T) {
	t.Parallel()

	var rec audit.Recorder
	v := NewValidator(&rec, slog.New(slog.DiscardHandler))
	snap := mustSnapshot(t, dualSettings())

	v.Validate(context.Background(), legacyHeader(t, "alice"), snap, testNow)
	v.Validate(context.Background(), newHeader(t, "bob"), snap, testNow)
	v.Validate(context.Background(), "Bearer junk", snap, testNow)

	events := rec.Events()
	require.Len(t, events, 3)

	assert.Equal(t, audit.OutcomeAccepted, events[0].Outcome)
	assert.Equal(t, "legacy", events[0].TokenKind)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Empty(t, events[0].Reason)
	assert.Equal(t, "dual", events[0].Mode)
	assert.True(t, events[0].Timestamp.Equal(testNow))

	assert.Equal(t, "new", events[1].TokenKind)
	assert.Equal(t, "bob", events[1].UserID)

	assert.Equal(t, audit.OutcomeRejected, events[2].Outcome)
	assert.Equal(t, "new", events[2].TokenKind)
	assert.Equal(t, "signature_invalid", events[2].Reason)
	assert.Empty(t, events[2].UserID)

	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestValidator_MissingHeaderAttemptsNoPath(t *testing.T) {
	t.Parallel()

	var rec audit.Recorder
	out := NewValidator(&rec, slog.New(slog.DiscardHandler)).
		Validate(context.Background(), "", mustSnapshot(t, dualSettings()), testNow)

	assert.Equal(t, ReasonMissingHeader, out.Reason)
	require.Equal(t, 1, rec.Len())
	for _, e := range rec.Events() {
		assert.Equal(t, "none", e.TokenKind)
		assert.Equal(t, "missing_header", e.Reason)
	}
}

func TestValidator_LogLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v := NewValidator(nil, logger)
	snap := mustSnapshot(t, dualSettings())

	v.Validate(context.Background(), legacyHeader(t, "alice"), snap, testNow)
	assert.Contains(t, buf.String(), `"level":"WARN","msg":"auth: legacy token used"`)
	buf.Reset()

	v.Validate(context.Background(), newHeader(t, "bob"), snap, testNow)
	assert.Contains(t, buf.String(), `"level":"DEBUG","msg":"auth: token accepted"`)
	buf.Reset()

	v.Validate(context.Background(), "", snap, testNow)
	assert.Contains(t, buf.String(), `"level":"INFO","msg":"auth: token rejected"`)
	assert.Contains(t, buf.String(), `"reason":"missing_header"`)
	assert.NotContains(t, buf.String(), testutil.LegacySecret)
	assert.NotContains(t, buf.String(), testutil.NewSecret)
}

func TestValidator_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	failing := audit.SinkFunc(func(context.Context, audit.Event) error { return errors.New("sink down") })
	v := NewValidator(failing, slog.New(slog.NewJSONHandler(&buf, nil)))

	out := v.Validate(context.Background(), newHeader(t, "bob"), mustSnapshot(t, dualSettings()), testNow)
	assert.Equal(t, Accept("bob", TokenKindNew), out)
	assert.Contains(t, buf.String(), "auth: audit emit failed")
}
