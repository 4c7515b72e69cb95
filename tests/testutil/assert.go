package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that secretValue does not appear in output
// and that the [REDACTED] marker does.
//
// Example usage:
//
//	AssertSecretRedacted(t, stdout.String(), creds.Token)
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appears in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should be redacted, but appears in output", secret)
	}
}

// AssertErrorContains verifies that err is non-nil and mentions substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if assert.Error(t, err, "Expected an error containing %q", substr) {
		assert.Contains(t, err.Error(), substr)
	}
}

// AssertLinesContain verifies that every expected string is found on some
// line of output.
//
//	AssertLinesContain(t, out, []string{"wsfe", "wsfex"})
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "Expected to find line containing %q in output", expected)
	}
}

// AssertCommandSuccess verifies that a command returned no error and,
// unless expectedInOutput is empty, that its output mentions it.
func AssertCommandSuccess(t *testing.T, err error, output string, expectedInOutput string) {
	t.Helper()

	assert.NoError(t, err, "Command should execute successfully. Output:\n%s", output)
	if expectedInOutput != "" {
		assert.Contains(t, output, expectedInOutput,
			"Command output should contain %q", expectedInOutput)
	}
}
