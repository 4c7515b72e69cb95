package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is a mock implementation of the azsecrets client
// subset used by secrets.AzureKeyVaultSource
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their data
	Secrets map[string]*AzureSecretData
	// Errors maps secret names to errors to return
	Errors map[string]error
	// GetSecretFunc allows custom behavior for GetSecret
	GetSecretFunc func(ctx context.Context, name, version string) (azsecrets.GetSecretResponse, error)
}

// AzureSecretData holds the data for a mock Azure secret
type AzureSecretData struct {
	Value       *string
	ContentType *string
	Attributes  *azsecrets.SecretAttributes
	Versions    map[string]*string
}

// NewFakeAzureKeyVaultClient creates a new mock Azure Key Vault client
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]*AzureSecretData),
		Errors:  make(map[string]error),
	}
}

// AddSecret adds a secret, as Key Vault stores imported PFX certificates
func (f *FakeAzureKeyVaultClient) AddSecret(name, version, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	data, exists := f.Secrets[name]
	if !exists {
		data = &AzureSecretData{
			ContentType: to.Ptr("application/x-pkcs12"),
			Attributes: &azsecrets.SecretAttributes{
				Enabled: to.Ptr(true),
				Created: &now,
				Updated: &now,
			},
			Versions: make(map[string]*string),
		}
		f.Secrets[name] = data
	}
	data.Value = to.Ptr(value)
	data.Versions[version] = to.Ptr(value)
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// GetSecret mocks the GetSecret operation
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if f.GetSecretFunc != nil {
		return f.GetSecretFunc(ctx, name, version)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, exists := f.Errors[name]; exists {
		return azsecrets.GetSecretResponse{}, err
	}

	notFound := &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  "SecretNotFound",
	}

	data, exists := f.Secrets[name]
	if !exists {
		return azsecrets.GetSecretResponse{}, notFound
	}

	value := data.Value
	id := fmt.Sprintf("https://test-vault.vault.azure.net/secrets/%s", name)
	if version != "" {
		v, ok := data.Versions[version]
		if !ok {
			return azsecrets.GetSecretResponse{}, notFound
		}
		value = v
		id += "/" + version
	}

	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:          (*azsecrets.ID)(to.Ptr(id)),
			Value:       value,
			ContentType: data.ContentType,
			Attributes:  data.Attributes,
		},
	}, nil
}
