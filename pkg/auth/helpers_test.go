package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-authcutover/internal/testutil"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// dualSettings is a valid dual-mode configuration with no cutover.
func dualSettings() Settings {
	return Settings{
		LegacySecret:        testutil.LegacySecret,
		LegacyAlgorithm:     "HS256",
		NewSecret:           testutil.NewSecret,
		NewIssuer:           testutil.NewIssuer,
		FeatureNewAuth:      true,
		LegacyTokensEnabled: true,
		Environment:         "development",
	}
}

func mustSnapshot(t testing.TB, s Settings) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(s)
	require.NoError(t, err)
	return snap
}

func timePtr(t time.Time) *time.Time { return &t }

func legacyHeader(t testing.TB, sub string) string {
	t.Helper()
	return testutil.Bearer(testutil.LegacyToken(t, sub, testNow, time.Hour))
}

func newHeader(t testing.TB, sub string) string {
	t.Helper()
	return testutil.Bearer(testutil.NewToken(t, sub, testNow, time.Hour))
}
