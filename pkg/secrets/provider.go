package secrets

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/secure"
)

// SecretsProvider supplies signing material.
type SecretsProvider interface {
	Certificate(ctx context.Context) (*x509.Certificate, error)
	PrivateKey(ctx context.Context) (crypto.Signer, error)
}

// KeyStoreSource loads the raw PKCS#12 blob from some medium.
type KeyStoreSource interface {
	Load(ctx context.Context) ([]byte, error)
	// Describe names the medium for logs and error messages. It must not
	// contain secret material.
	Describe() string
}

// SigningMaterial is a certificate and its private key. It is never
// persisted.
type SigningMaterial struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
}

// NotFoundError reports a missing key store or a missing entry inside it.
type NotFoundError struct {
	Kind  string // "keystore", "certificate" or "private key"
	Alias string
}

func (e *NotFoundError) Error() string {
	if e.Alias == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Alias)
}

// Options configures how a key store is opened.
type Options struct {
	Password         string
	CertificateAlias string
	PrivateKeyAlias  string
}

// KeyStoreProvider implements SecretsProvider over a KeyStoreSource.
type KeyStoreProvider struct {
	source    KeyStoreSource
	password  *secure.SecureBuffer
	certAlias string
	keyAlias  string
	logger    *logging.Logger
}

// NewKeyStoreProvider creates a provider. The password is moved into a
// memguard enclave; opts.Password is left untouched.
func NewKeyStoreProvider(source KeyStoreSource, opts Options, logger *logging.Logger) (*KeyStoreProvider, error) {
	if source == nil {
		return nil, fmt.Errorf("key store source is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	password, err := secure.NewSecureString(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to protect key store password: %w", err)
	}

	keyAlias := opts.PrivateKeyAlias
	if keyAlias == "" {
		keyAlias = opts.CertificateAlias
	}

	return &KeyStoreProvider{
		source:    source,
		password:  password,
		certAlias: opts.CertificateAlias,
		keyAlias:  keyAlias,
		logger:    logger,
	}, nil
}

// Describe names the underlying source.
func (p *KeyStoreProvider) Describe() string {
	return p.source.Describe()
}

// Certificate loads the key store and returns the configured certificate.
func (p *KeyStoreProvider) Certificate(ctx context.Context) (*x509.Certificate, error) {
	ks, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	return ks.Certificate(p.certAlias)
}

// PrivateKey loads the key store and returns the configured private key.
func (p *KeyStoreProvider) PrivateKey(ctx context.Context) (crypto.Signer, error) {
	ks, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	return ks.PrivateKey(p.keyAlias)
}

// Material returns certificate and key from a single load of the source.
func (p *KeyStoreProvider) Material(ctx context.Context) (SigningMaterial, error) {
	ks, err := p.open(ctx)
	if err != nil {
		return SigningMaterial{}, err
	}
	cert, err := ks.Certificate(p.certAlias)
	if err != nil {
		return SigningMaterial{}, err
	}
	key, err := ks.PrivateKey(p.keyAlias)
	if err != nil {
		return SigningMaterial{}, err
	}
	return SigningMaterial{Certificate: cert, PrivateKey: key}, nil
}

// KeyStore loads and decodes the whole key store
func (p *KeyStoreProvider) KeyStore(ctx context.Context) (*KeyStore, error) {
	return p.open(ctx)
}

// Close wipes the protected password.
func (p *KeyStoreProvider) Close() error {
	p.password.Destroy()
	return nil
}

func (p *KeyStoreProvider) open(ctx context.Context) (*KeyStore, error) {
	blob, err := p.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	defer wipe(blob)

	password, err := p.password.String()
	if err != nil {
		return nil, err
	}

	ks, err := DecodeKeyStore(blob, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store from %s: %w", p.source.Describe(), err)
	}
	p.logger.Debug("Opened key store from %s (%d certificates, %d keys)",
		p.source.Describe(), len(ks.Certificates), len(ks.Keys))
	return ks, nil
}

// Compile-time interface check
var _ SecretsProvider = (*KeyStoreProvider)(nil)
