// Package testutil provides shared test infrastructure for afipws:
// key store fixtures, a SOAP stub server, configuration builders and
// log capture.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCUIT is the taxpayer used throughout the tests
const TestCUIT int64 = 20304050603

// TestConfigBuilder provides a fluent API for building afipws.yaml files.
//
// The builder starts from a valid configuration: test environment, a
// key store file written to a temp dir and a filesystem credentials store
// in the same dir.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithEndpoint("wsaa", stub.URL("/wsaa")).
//	    WithCache(false).
//	    Write()
type TestConfigBuilder struct {
	t       *testing.T
	dir     string
	fixture *KeyStoreFixture
	def     map[string]interface{}
}

// NewTestConfig creates a builder backed by t.TempDir()
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	dir := t.TempDir()
	fixture := NewKeyStoreFixture(t, "test")
	keystore := fixture.WriteFile(t, dir)

	return &TestConfigBuilder{
		t:       t,
		dir:     dir,
		fixture: fixture,
		def: map[string]interface{}{
			"environment": "test",
			"cuit":        TestCUIT,
			"secrets": map[string]interface{}{
				"type":     "file",
				"path":     keystore,
				"password": fixture.Password,
			},
			"store": map[string]interface{}{
				"driver": "filesystem",
				"dir":    filepath.Join(dir, "credentials"),
			},
		},
	}
}

// Dir returns the temp dir holding the key store and credentials
func (b *TestConfigBuilder) Dir() string {
	return b.dir
}

// Fixture returns the key store written for the configuration
func (b *TestConfigBuilder) Fixture() *KeyStoreFixture {
	return b.fixture
}

// With sets a top-level key
func (b *TestConfigBuilder) With(key string, value interface{}) *TestConfigBuilder {
	b.def[key] = value
	return b
}

// WithSecret sets a key of the secrets section
func (b *TestConfigBuilder) WithSecret(key string, value interface{}) *TestConfigBuilder {
	b.def["secrets"].(map[string]interface{})[key] = value
	return b
}

// WithEndpoint overrides the endpoint of a catalog service
func (b *TestConfigBuilder) WithEndpoint(service, url string) *TestConfigBuilder {
	endpoints, ok := b.def["endpoints"].(map[string]string)
	if !ok {
		endpoints = map[string]string{}
		b.def["endpoints"] = endpoints
	}
	endpoints[service] = url
	return b
}

// WithCache turns credential reuse on or off
func (b *TestConfigBuilder) WithCache(enabled bool) *TestConfigBuilder {
	b.def["cache"] = map[string]interface{}{"enabled": enabled}
	return b
}

// YAML renders the configuration
func (b *TestConfigBuilder) YAML() []byte {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}
	return data
}

// Write stores the configuration as afipws.yaml and returns its path
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.dir, "afipws.yaml")
	if err := os.WriteFile(path, b.YAML(), 0o600); err != nil {
		b.t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}
