package testutil

import (
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test.
// The previous values are restored when the test completes. Tests using
// it must not call t.Parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "AFIPWS_KEYSTORE_PASSWORD": "changeit",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}
