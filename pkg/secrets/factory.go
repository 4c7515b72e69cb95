package secrets

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/pkg/store"
)

// Config selects a key store source and the options to open it.
type Config struct {
	Type             string `yaml:"type"`
	Password         string `yaml:"password"`
	CertificateAlias string `yaml:"alias"`
	PrivateKeyAlias  string `yaml:"private_key_alias"`

	// Path is used by the file source.
	Path string `yaml:"path"`
	// Name is the secret id, parameter, store item, Key Vault secret or
	// Akeyless path.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	AWS      AWSConfig      `yaml:"aws"`
	GCP      GCPConfig      `yaml:"gcp"`
	Azure    AzureConfig    `yaml:"azure"`
	Akeyless AkeylessConfig `yaml:"akeyless"`

	KeyringService string `yaml:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user"`
}

var sourceTypes = map[string]func(ctx context.Context, cfg Config, st store.ObjectStore) (KeyStoreSource, error){
	"file": func(_ context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		return NewFileSource(cfg.Path)
	},
	"store": func(_ context.Context, cfg Config, st store.ObjectStore) (KeyStoreSource, error) {
		return NewObjectStoreSource(st, cfg.Name)
	},
	"aws-secretsmanager": func(ctx context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		var opts []AWSSecretsManagerOption
		if cfg.Version != "" {
			opts = append(opts, WithSecretVersionStage(cfg.Version))
		}
		return NewAWSSecretsManagerSource(ctx, cfg.Name, cfg.AWS, opts...)
	},
	"aws-ssm": func(ctx context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		return NewAWSSSMSource(ctx, cfg.Name, cfg.AWS)
	},
	"gcp-secretmanager": func(ctx context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		gcp := cfg.GCP
		if gcp.Secret == "" {
			gcp.Secret = cfg.Name
		}
		if gcp.Version == "" {
			gcp.Version = cfg.Version
		}
		return NewGCPSecretManagerSource(ctx, gcp)
	},
	"azure-keyvault": func(_ context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		az := cfg.Azure
		if az.Secret == "" {
			az.Secret = cfg.Name
		}
		if az.Version == "" {
			az.Version = cfg.Version
		}
		return NewAzureKeyVaultSource(az)
	},
	"akeyless": func(_ context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		var opts []AkeylessOption
		if cfg.Version != "" {
			v, err := strconv.ParseInt(cfg.Version, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid akeyless version %q: %w", cfg.Version, err)
			}
			opts = append(opts, WithAkeylessVersion(int32(v)))
		}
		return NewAkeylessSource(cfg.Name, cfg.Akeyless, opts...)
	},
	"keyring": func(_ context.Context, cfg Config, _ store.ObjectStore) (KeyStoreSource, error) {
		service := cfg.KeyringService
		if service == "" {
			service = "afipws"
		}
		user := cfg.KeyringUser
		if user == "" {
			user = cfg.Name
		}
		return NewKeyringSource(service, user)
	},
}

// SourceTypes lists the accepted Config.Type values.
func SourceTypes() []string {
	types := make([]string, 0, len(sourceTypes))
	for t := range sourceTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewSource builds the source named by cfg.Type. st is only used by the
// "store" source and may be nil otherwise.
func NewSource(ctx context.Context, cfg Config, st store.ObjectStore) (KeyStoreSource, error) {
	build, ok := sourceTypes[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown key store source %q (supported: %v)", cfg.Type, SourceTypes())
	}
	return build(ctx, cfg, st)
}

// New builds a KeyStoreProvider from cfg.
func New(ctx context.Context, cfg Config, st store.ObjectStore, logger *logging.Logger) (*KeyStoreProvider, error) {
	source, err := NewSource(ctx, cfg, st)
	if err != nil {
		return nil, err
	}
	return NewKeyStoreProvider(source, Options{
		Password:         cfg.Password,
		CertificateAlias: cfg.CertificateAlias,
		PrivateKeyAlias:  cfg.PrivateKeyAlias,
	}, logger)
}
