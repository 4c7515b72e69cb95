package fakes

import (
	"context"
	"fmt"
	"sync"
)

// FakeAkeylessClient is a test double for secrets.AkeylessClientAPI.
// Secrets keep every version; version 0 reads the latest.
type FakeAkeylessClient struct {
	mu sync.Mutex

	// Token is returned by Authenticate and required by GetSecretValue
	Token string
	// AuthErr is returned by Authenticate if set
	AuthErr error
	// GetErr is returned by GetSecretValue if set
	GetErr error

	// AuthCallCount tracks how many times Authenticate was called
	AuthCallCount int
	// GetCallCount tracks how many times GetSecretValue was called
	GetCallCount int

	versions map[string][]string
}

// NewFakeAkeylessClient creates a new fake Akeyless client with defaults
func NewFakeAkeylessClient() *FakeAkeylessClient {
	return &FakeAkeylessClient{
		Token:    "fake-akeyless-token",
		versions: make(map[string][]string),
	}
}

// SetSecret appends value as the newest version of path
func (f *FakeAkeylessClient) SetSecret(path, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[path] = append(f.versions[path], value)
}

// Authenticate returns Token
func (f *FakeAkeylessClient) Authenticate(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AuthCallCount++
	if f.AuthErr != nil {
		return "", f.AuthErr
	}
	return f.Token, nil
}

// GetSecretValue returns the requested version of path
func (f *FakeAkeylessClient) GetSecretValue(_ context.Context, token, path string, version int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCallCount++
	if f.GetErr != nil {
		return "", f.GetErr
	}
	if token != f.Token {
		return "", fmt.Errorf("unauthorized: invalid token")
	}

	versions := f.versions[path]
	if len(versions) == 0 {
		return "", fmt.Errorf("itemNotFound: %s", path)
	}
	if version == 0 {
		return versions[len(versions)-1], nil
	}
	if int(version) > len(versions) {
		return "", fmt.Errorf("item version %d not found", version)
	}
	return versions[version-1], nil
}
