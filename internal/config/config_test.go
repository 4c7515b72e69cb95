package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/pkg/afip"
	"github.com/systmms/afipws/pkg/store"
	"github.com/systmms/afipws/tests/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "afipws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func requireConfigError(t *testing.T, err error) errors.ConfigError {
	t.Helper()
	var cfgErr errors.ConfigError
	require.True(t, stderrors.As(err, &cfgErr), "expected ConfigError, got %v", err)
	return cfgErr
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: "/nonexistent/path/to/afipws.yaml", Logger: logging.Nop()}
	err := cfg.Load()
	cfgErr := requireConfigError(t, err)
	assert.Equal(t, "path", cfgErr.Field)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `cuit: 20304050603
secrets:
  type: file
  bad syntax here [[[
`)
	err := (&Config{Path: path}).Load()
	requireConfigError(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	err := (&Config{Path: writeConfig(t, "")}).Load()
	requireConfigError(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParse_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "missing cuit",
			yaml:    "secrets: {type: file, path: k.p12}\n",
			message: "cuit is required",
		},
		{
			name:    "unknown key",
			yaml:    "cuit: 20304050603\nsecrets: {type: file, path: k.p12}\ntimeout: 3\n",
			message: "timeout",
		},
		{
			name:    "cuit out of range",
			yaml:    "cuit: 123\nsecrets: {type: file, path: k.p12}\n",
			message: "cuit",
		},
		{
			name:    "unknown source type",
			yaml:    "cuit: 20304050603\nsecrets: {type: vault}\n",
			message: "secrets.type",
		},
		{
			name:    "file source without path",
			yaml:    "cuit: 20304050603\nsecrets: {type: file}\n",
			message: "path is required",
		},
		{
			name:    "cloud source without name",
			yaml:    "cuit: 20304050603\nsecrets: {type: aws-secretsmanager}\n",
			message: "name is required",
		},
		{
			name:    "bad duration",
			yaml:    "cuit: 20304050603\nsecrets: {type: file, path: k.p12}\nhttp: {read_timeout: soon}\n",
			message: "http.read_timeout",
		},
		{
			name:    "bad endpoint override",
			yaml:    "cuit: 20304050603\nsecrets: {type: file, path: k.p12}\nendpoints: {wsfe: ftp://x}\n",
			message: "endpoints.wsfe",
		},
		{
			name:    "unknown environment",
			yaml:    "environment: staging\ncuit: 20304050603\nsecrets: {type: file, path: k.p12}\n",
			message: "environment",
		},
		{
			name:    "unknown store driver",
			yaml:    "cuit: 20304050603\nsecrets: {type: file, path: k.p12}\nstore: {driver: cassandra}\n",
			message: "store.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.yaml))
			requireConfigError(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParse_FullDefinition(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte(`
environment: production
cuit: 30712345678
debug: true
secrets:
  type: azure-keyvault
  password: changeit
  alias: afip
  azure:
    vault_url: https://afip.vault.azure.net
    secret: keystore
    use_managed_identity: true
store:
  driver: redis
  redis:
    addr: localhost:6379
    prefix: "afip:"
cache:
  enabled: false
http:
  connect_timeout: 5s
  read_timeout: 1m30s
endpoints:
  wsfe: https://proxy.internal/wsfev1/service.asmx
services:
  - name: wsmtxca
    endpoint: https://serviciosjava.afip.gob.ar/wsmtxca/services/MTXCAService
`))
	require.NoError(t, err)

	assert.Equal(t, afip.Production, def.AFIPEnvironment())
	assert.Equal(t, int64(30712345678), def.CUIT)
	assert.True(t, def.Debug)

	assert.Equal(t, "azure-keyvault", def.Secrets.Type)
	assert.Equal(t, "afip", def.Secrets.CertificateAlias)
	assert.Equal(t, "https://afip.vault.azure.net", def.Secrets.Azure.VaultURL)
	assert.True(t, def.Secrets.Azure.UseManagedIdentity)

	assert.Equal(t, store.Config{
		Driver: "redis",
		Redis:  store.RedisConfig{Addr: "localhost:6379", Prefix: "afip:"},
	}, def.Store)
	assert.False(t, def.Cache.IsEnabled())

	httpCfg := def.SOAPHTTPConfig()
	assert.Equal(t, 5*time.Second, httpCfg.ConnectTimeout)
	assert.Equal(t, 90*time.Second, httpCfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, httpCfg.WriteTimeout)

	assert.Equal(t, "https://proxy.internal/wsfev1/service.asmx", def.Endpoints["wsfe"])
	require.Len(t, def.Services, 1)
	assert.Equal(t, "wsmtxca", def.Services[0].Name)
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte("cuit: 20304050603\nsecrets: {type: keyring, name: afip}\n"))
	require.NoError(t, err)
	assert.Equal(t, afip.Test, def.AFIPEnvironment())
	assert.True(t, def.Cache.IsEnabled())
	assert.Equal(t, store.Config{}, def.Store)
}

func TestExpandEnv(t *testing.T) {
	testutil.SetupTestEnv(t, map[string]string{
		"AFIPWS_TEST_PASSWORD": "s3cr$t",
		"AFIPWS_TEST_EMPTY":    "",
	})

	assert.Equal(t, "password: s3cr$t", ExpandEnv("password: ${AFIPWS_TEST_PASSWORD}"))
	assert.Equal(t, "dir: /var/lib/afipws", ExpandEnv("dir: ${AFIPWS_TEST_UNSET:-/var/lib/afipws}"))
	assert.Equal(t, "x: fallback", ExpandEnv("x: ${AFIPWS_TEST_EMPTY:-fallback}"))
	assert.Equal(t, "x: ", ExpandEnv("x: ${AFIPWS_TEST_UNSET}"))
	assert.Equal(t, "literal $HOME stays", ExpandEnv("literal $HOME stays"))
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	testutil.SetupTestEnv(t, map[string]string{
		"AFIPWS_TEST_CUIT":     "20304050603",
		"AFIPWS_TEST_PASSWORD": "changeit",
	})

	path := writeConfig(t, `
cuit: ${AFIPWS_TEST_CUIT}
secrets:
  type: file
  path: ${AFIPWS_TEST_KEYSTORE:-/etc/afipws/keystore.p12}
  password: ${AFIPWS_TEST_PASSWORD}
`)
	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())
	assert.Equal(t, int64(20304050603), cfg.Definition.CUIT)
	assert.Equal(t, "/etc/afipws/keystore.p12", cfg.Definition.Secrets.Path)
	assert.Equal(t, "changeit", cfg.Definition.Secrets.Password)
}

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	stub := testutil.NewSOAPStub(t).Handle("/wsaa", func(testutil.StubRequest) testutil.StubResponse {
		return testutil.StubResponse{Body: testutil.LoginCmsResponse("T1", "S1", now, now.Add(12*time.Hour))}
	})
	builder := testutil.NewTestConfig(t).WithEndpoint("wsaa", stub.URL("/wsaa"))

	cfg := &Config{Path: builder.Write(), Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	svc, err := cfg.Build(ctx, nil)
	require.NoError(t, err)

	creds, err := svc.Auth.Authenticate(ctx, "wsfe")
	require.NoError(t, err)
	assert.Equal(t, "T1", creds.Token)
	assert.Equal(t, testutil.TestCUIT, creds.CUIT)
	require.NoError(t, svc.Close())

	// credentials survive in the filesystem store
	st, err := cfg.OpenStore(ctx)
	require.NoError(t, err)
	defer st.Close()
	exists, err := st.Exists(ctx, "wsfe")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuild_SecretsError(t *testing.T) {
	t.Parallel()

	builder := testutil.NewTestConfig(t).WithSecret("path", filepath.Join(t.TempDir(), "missing.p12"))
	cfg := &Config{Path: builder.Write()}
	require.NoError(t, cfg.Load())

	_, err := cfg.Build(context.Background(), nil)
	var userErr errors.UserError
	require.True(t, stderrors.As(err, &userErr), "got %v", err)
	assert.Contains(t, userErr.Message, "file key store error")
	assert.Contains(t, userErr.Suggestion, "secrets.path")
}

func TestBuild_NotLoaded(t *testing.T) {
	t.Parallel()

	_, err := (&Config{}).Build(context.Background(), nil)
	var userErr errors.UserError
	require.True(t, stderrors.As(err, &userErr))
	assert.Contains(t, userErr.Message, "not loaded")
}
