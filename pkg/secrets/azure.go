package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AzureKeyVaultClientAPI is the subset of the azsecrets client in use.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureConfig selects the vault and how to authenticate against it.
// Without a client secret or managed identity the default credential chain
// is used.
type AzureConfig struct {
	VaultURL           string `yaml:"vault_url"`
	Secret             string `yaml:"secret"`
	Version            string `yaml:"version"`
	TenantID           string `yaml:"tenant_id"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	UseManagedIdentity bool   `yaml:"use_managed_identity"`
	UserAssignedID     string `yaml:"user_assigned_id"`
}

// AzureKeyVaultSource reads the key store from a Key Vault secret. Key Vault
// exposes PFX certificates as base64 secrets, which is the expected format.
type AzureKeyVaultSource struct {
	secret  string
	version string
	client  AzureKeyVaultClientAPI
}

// AzureOption configures an AzureKeyVaultSource.
type AzureOption func(*AzureKeyVaultSource)

// WithAzureClient sets a custom Key Vault client (for testing)
func WithAzureClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(s *AzureKeyVaultSource) {
		s.client = client
	}
}

func NewAzureKeyVaultSource(cfg AzureConfig, opts ...AzureOption) (*AzureKeyVaultSource, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("secret name is required")
	}
	s := &AzureKeyVaultSource{secret: cfg.Secret, version: cfg.Version}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		if cfg.VaultURL == "" {
			return nil, fmt.Errorf("vault URL is required")
		}
		cred, err := azureCredential(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

func azureCredential(cfg AzureConfig) (azcore.TokenCredential, error) {
	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		return azidentity.NewManagedIdentityCredential(nil)
	case cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "":
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

func (s *AzureKeyVaultSource) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.GetSecret(ctx, s.secret, s.version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.secret}
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", s.secret, err)
	}
	if resp.Value == nil || *resp.Value == "" {
		return nil, &NotFoundError{Kind: "keystore", Alias: s.secret}
	}
	return decodeString(*resp.Value), nil
}

func (s *AzureKeyVaultSource) Describe() string {
	return "azure-keyvault:" + s.secret
}
