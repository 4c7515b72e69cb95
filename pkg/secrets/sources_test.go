package secrets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/afipws/pkg/secrets"
	"github.com/systmms/afipws/pkg/store"
	"github.com/systmms/afipws/tests/fakes"
	"github.com/systmms/afipws/tests/testutil"
)

func TestAWSSecretsManagerSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	fake := fakes.NewFakeSecretsManagerClient()
	fake.PutKeyStore("afip/binary", fixture.PKCS12)
	fake.PutKeyStoreText("afip/text", fixture.Base64())
	fake.FailWith("afip/denied", errors.New("AccessDeniedException: not authorized"))

	for _, id := range []string{"afip/binary", "afip/text"} {
		t.Run(id, func(t *testing.T) {
			src, err := secrets.NewAWSSecretsManagerSource(ctx, id, secrets.AWSConfig{},
				secrets.WithSecretsManagerClient(fake))
			require.NoError(t, err)
			assert.Equal(t, "aws-secretsmanager:"+id, src.Describe())

			p, err := secrets.NewKeyStoreProvider(src, secrets.Options{Password: fixture.Password}, nil)
			require.NoError(t, err)
			assertMaterial(t, fixture, p)
			assert.Equal(t, 2, fake.Calls(id), "every lookup reads the secret")
		})
	}

	missing, err := secrets.NewAWSSecretsManagerSource(ctx, "afip/missing", secrets.AWSConfig{},
		secrets.WithSecretsManagerClient(fake))
	require.NoError(t, err)
	_, err = missing.Load(ctx)
	requireNotFound(t, err, "keystore")

	denied, err := secrets.NewAWSSecretsManagerSource(ctx, "afip/denied", secrets.AWSConfig{},
		secrets.WithSecretsManagerClient(fake))
	require.NoError(t, err)
	_, err = denied.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestAWSSecretsManagerSource_VersionStage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := fakes.NewFakeSecretsManagerClient()
	fake.PutKeyStore("afip/keystore", []byte{0x30, 0x01})
	fake.PutKeyStore("afip/keystore", []byte{0x30, 0x02})

	current, err := secrets.NewAWSSecretsManagerSource(ctx, "afip/keystore", secrets.AWSConfig{},
		secrets.WithSecretsManagerClient(fake))
	require.NoError(t, err)
	data, err := current.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x02}, data)

	previous, err := secrets.NewAWSSecretsManagerSource(ctx, "afip/keystore", secrets.AWSConfig{},
		secrets.WithSecretsManagerClient(fake), secrets.WithSecretVersionStage("AWSPREVIOUS"))
	require.NoError(t, err)
	data, err = previous.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x01}, data)

	pending, err := secrets.NewAWSSecretsManagerSource(ctx, "afip/keystore", secrets.AWSConfig{},
		secrets.WithSecretsManagerClient(fake), secrets.WithSecretVersionStage("AWSPENDING"))
	require.NoError(t, err)
	_, err = pending.Load(ctx)
	requireNotFound(t, err, "keystore")

	assert.Equal(t, 3, fake.Calls("afip/keystore"))
}

func TestAWSSSMSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	fake := fakes.NewFakeSSMClient()
	fake.PutKeyStore("/afip/keystore", fixture.Base64())

	src, err := secrets.NewAWSSSMSource(ctx, "/afip/keystore", secrets.AWSConfig{}, secrets.WithSSMClient(fake))
	require.NoError(t, err)

	p, err := secrets.NewKeyStoreProvider(src, secrets.Options{Password: fixture.Password}, nil)
	require.NoError(t, err)
	assertMaterial(t, fixture, p)
	assert.Equal(t, 2, fake.Calls("/afip/keystore"))

	missing, err := secrets.NewAWSSSMSource(ctx, "/afip/missing", secrets.AWSConfig{}, secrets.WithSSMClient(fake))
	require.NoError(t, err)
	_, err = missing.Load(ctx)
	requireNotFound(t, err, "keystore")

	_, err = secrets.NewAWSSSMSource(ctx, "", secrets.AWSConfig{}, secrets.WithSSMClient(fake))
	assert.Error(t, err)
}

func TestGCPSecretManagerSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	fake := fakes.NewFakeGCPSecretManagerClient()
	fake.AddSecretVersion("my-project", "afip-keystore", "3", fixture.PKCS12)
	fake.AddError("projects/my-project/secrets/locked/versions/latest",
		status.Error(codes.PermissionDenied, "permission denied"))

	src, err := secrets.NewGCPSecretManagerSource(ctx, secrets.GCPConfig{
		ProjectID: "my-project",
		Secret:    "afip-keystore",
	}, secrets.WithGCPClient(fake))
	require.NoError(t, err)
	assert.Equal(t, "gcp-secretmanager:projects/my-project/secrets/afip-keystore/versions/latest", src.Describe())

	p, err := secrets.NewKeyStoreProvider(src, secrets.Options{Password: fixture.Password}, nil)
	require.NoError(t, err)
	assertMaterial(t, fixture, p)

	pinned, err := secrets.NewGCPSecretManagerSource(ctx, secrets.GCPConfig{
		ProjectID: "my-project",
		Secret:    "afip-keystore",
		Version:   "4",
	}, secrets.WithGCPClient(fake))
	require.NoError(t, err)
	_, err = pinned.Load(ctx)
	requireNotFound(t, err, "keystore")

	locked, err := secrets.NewGCPSecretManagerSource(ctx, secrets.GCPConfig{
		ProjectID: "my-project",
		Secret:    "locked",
	}, secrets.WithGCPClient(fake))
	require.NoError(t, err)
	_, err = locked.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(errors.Unwrap(err)))

	require.NoError(t, src.Close())
	assert.True(t, fake.Closed)
}

func TestAzureKeyVaultSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	fake := fakes.NewFakeAzureKeyVaultClient()
	fake.AddSecret("afip-cert", "a1b2c3", fixture.Base64())

	for _, version := range []string{"", "a1b2c3"} {
		src, err := secrets.NewAzureKeyVaultSource(secrets.AzureConfig{
			Secret:  "afip-cert",
			Version: version,
		}, secrets.WithAzureClient(fake))
		require.NoError(t, err)

		p, err := secrets.NewKeyStoreProvider(src, secrets.Options{Password: fixture.Password}, nil)
		require.NoError(t, err)
		assertMaterial(t, fixture, p)
	}

	missing, err := secrets.NewAzureKeyVaultSource(secrets.AzureConfig{Secret: "nope"}, secrets.WithAzureClient(fake))
	require.NoError(t, err)
	_, err = missing.Load(ctx)
	requireNotFound(t, err, "keystore")

	_, err = secrets.NewAzureKeyVaultSource(secrets.AzureConfig{Secret: "afip-cert"})
	assert.Error(t, err, "vault URL is required without an injected client")
}

func TestAkeylessSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")
	other := testutil.NewKeyStoreFixture(t, "other")

	fake := fakes.NewFakeAkeylessClient()
	fake.SetSecret("/afip/keystore", fixture.Base64())
	fake.SetSecret("/afip/keystore", other.Base64())

	pinned, err := secrets.NewAkeylessSource("afip/keystore", secrets.AkeylessConfig{},
		secrets.WithAkeylessClient(fake), secrets.WithAkeylessVersion(1))
	require.NoError(t, err)
	assert.Equal(t, "akeyless:/afip/keystore", pinned.Describe())

	p, err := secrets.NewKeyStoreProvider(pinned, secrets.Options{Password: fixture.Password}, nil)
	require.NoError(t, err)
	assertMaterial(t, fixture, p)
	assert.Equal(t, 2, fake.AuthCallCount)
	assert.Equal(t, 2, fake.GetCallCount)

	latest, err := secrets.NewAkeylessSource("/afip/keystore", secrets.AkeylessConfig{}, secrets.WithAkeylessClient(fake))
	require.NoError(t, err)
	p, err = secrets.NewKeyStoreProvider(latest, secrets.Options{Password: other.Password}, nil)
	require.NoError(t, err)
	cert, err := p.Certificate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other", cert.Subject.CommonName)

	missing, err := secrets.NewAkeylessSource("/afip/missing", secrets.AkeylessConfig{}, secrets.WithAkeylessClient(fake))
	require.NoError(t, err)
	_, err = missing.Load(ctx)
	requireNotFound(t, err, "keystore")

	_, err = secrets.NewAkeylessSource("/", secrets.AkeylessConfig{}, secrets.WithAkeylessClient(fake))
	assert.Error(t, err)
}

func TestAkeylessSource_AuthFailure(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeAkeylessClient()
	fake.AuthErr = errors.New("401 unauthorized")

	src, err := secrets.NewAkeylessSource("/afip/keystore", secrets.AkeylessConfig{}, secrets.WithAkeylessClient(fake))
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "akeyless authentication failed")
	assert.Equal(t, 0, fake.GetCallCount)
}

func TestKeyringSource(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	src, err := secrets.NewKeyringSource("afipws", "20304050603")
	require.NoError(t, err)

	_, err = src.Load(ctx)
	requireNotFound(t, err, "keystore")

	require.NoError(t, src.Store(fixture.PKCS12))

	p, err := secrets.NewKeyStoreProvider(src, secrets.Options{Password: fixture.Password}, nil)
	require.NoError(t, err)
	assertMaterial(t, fixture, p)
}

func TestNewFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixture := testutil.NewKeyStoreFixture(t, "test")

	assert.Equal(t, []string{
		"akeyless", "aws-secretsmanager", "aws-ssm", "azure-keyvault", "file",
		"gcp-secretmanager", "keyring", "store",
	}, secrets.SourceTypes())

	_, err := secrets.New(ctx, secrets.Config{Type: "vault"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key store source")

	path := fixture.WriteFile(t, t.TempDir())
	p, err := secrets.New(ctx, secrets.Config{Type: "file", Path: path, Password: fixture.Password}, nil, nil)
	require.NoError(t, err)
	assertMaterial(t, fixture, p)

	st := store.NewMemory()
	require.NoError(t, secrets.SaveKeyStore(ctx, st, "keystore", fixture.PKCS12))
	p, err = secrets.New(ctx, secrets.Config{Type: "store", Name: "keystore", Password: fixture.Password}, st, nil)
	require.NoError(t, err)
	assert.Equal(t, "store:keystore", p.Describe())
	assertMaterial(t, fixture, p)

	_, err = secrets.New(ctx, secrets.Config{Type: "store", Name: "keystore"}, nil, nil)
	assert.Error(t, err)

	_, err = secrets.New(ctx, secrets.Config{Type: "akeyless", Name: "/afip/keystore"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access id is required")

	_, err = secrets.New(ctx, secrets.Config{
		Type:     "akeyless",
		Name:     "/afip/keystore",
		Version:  "latest",
		Akeyless: secrets.AkeylessConfig{AccessID: "p-123"},
	}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid akeyless version")
}
