// Package config loads afipws.yaml and builds the components it describes.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	aerrors "github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/afip"
	"github.com/systmms/afipws/pkg/secrets"
	"github.com/systmms/afipws/pkg/soap"
	"github.com/systmms/afipws/pkg/store"
)

// DefaultPath is read when no --config flag is given
const DefaultPath = "afipws.yaml"

//go:embed schema.json
var schema []byte

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the afipws.yaml structure
type Definition struct {
	Environment string               `yaml:"environment"`
	CUIT        int64                `yaml:"cuit"`
	Debug       bool                 `yaml:"debug"`
	Secrets     secrets.Config       `yaml:"secrets"`
	Store       store.Config         `yaml:"store"`
	Cache       CacheConfig          `yaml:"cache"`
	HTTP        HTTPConfig           `yaml:"http"`
	Endpoints   map[string]string    `yaml:"endpoints,omitempty"`
	Services    []afip.ServiceConfig `yaml:"services,omitempty"`
}

// CacheConfig controls credential reuse
type CacheConfig struct {
	// Enabled defaults to true
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether cached credentials are reused
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HTTPConfig holds transport timeouts. Zero values keep the defaults.
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// Load reads, expands and validates the configuration file
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return aerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create an afipws.yaml with at least 'cuit' and 'secrets', or pass --config",
			}
		}
		return aerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse expands ${VAR} references in data, validates the result against
// the embedded schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	expanded := ExpandEnv(string(data))

	var raw interface{}
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, aerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return nil, aerrors.ConfigError{
			Message:    "configuration file is empty",
			Suggestion: "Set at least 'cuit' and 'secrets'",
		}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal([]byte(expanded), &def); err != nil {
		return nil, aerrors.ConfigError{
			Message:    "invalid configuration value",
			Suggestion: err.Error(),
		}
	}
	if _, err := afip.ParseEnvironment(def.Environment); err != nil {
		return nil, aerrors.ConfigError{
			Field:      "environment",
			Value:      def.Environment,
			Message:    "unknown environment",
			Suggestion: "Use 'test' or 'production'",
		}
	}
	return &def, nil
}

func validate(raw interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	messages := make([]string, len(errs))
	for i, desc := range errs {
		messages[i] = desc.String()
	}
	first := errs[0]
	return aerrors.ConfigError{
		Field:      first.Field(),
		Value:      first.Value(),
		Message:    strings.Join(messages, "; "),
		Suggestion: "See the configuration reference for accepted keys and values",
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default}. Bare $VAR is left alone
// so passwords may contain dollar signs.
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}

// AFIPEnvironment returns the parsed environment
func (d *Definition) AFIPEnvironment() afip.Environment {
	env, _ := afip.ParseEnvironment(d.Environment)
	return env
}

// SOAPHTTPConfig merges the configured timeouts over the defaults
func (d *Definition) SOAPHTTPConfig() soap.HTTPConfig {
	cfg := soap.DefaultHTTPConfig()
	if d.HTTP.ConnectTimeout > 0 {
		cfg.ConnectTimeout = d.HTTP.ConnectTimeout
	}
	if d.HTTP.ReadTimeout > 0 {
		cfg.ReadTimeout = d.HTTP.ReadTimeout
	}
	if d.HTTP.WriteTimeout > 0 {
		cfg.WriteTimeout = d.HTTP.WriteTimeout
	}
	if d.HTTP.UserAgent != "" {
		cfg.UserAgent = d.HTTP.UserAgent
	}
	return cfg
}

func (c *Config) definition() (*Definition, error) {
	if c.Definition == nil {
		return nil, aerrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	return c.Definition, nil
}

func (c *Config) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

// OpenStore opens the configured credentials store
func (c *Config) OpenStore(ctx context.Context) (store.ObjectStore, error) {
	def, err := c.definition()
	if err != nil {
		return nil, err
	}
	st, err := store.New(ctx, def.Store, c.logger())
	if err != nil {
		return nil, aerrors.ConfigError{
			Field:      "store",
			Value:      def.Store.Driver,
			Message:    err.Error(),
			Suggestion: fmt.Sprintf("Supported drivers: %s", strings.Join(store.Drivers(), ", ")),
		}
	}
	return st, nil
}

// OpenSecrets builds the key store provider. st backs the "store" source.
func (c *Config) OpenSecrets(ctx context.Context, st store.ObjectStore) (*secrets.KeyStoreProvider, error) {
	def, err := c.definition()
	if err != nil {
		return nil, err
	}
	p, err := secrets.New(ctx, def.Secrets, st, c.logger())
	if err != nil {
		return nil, aerrors.SourceError(def.Secrets.Type, "open", err)
	}
	return p, nil
}

// Build opens the store and the key store and wires the AFIP services.
// The returned Services owns the store; afip.New closes it on failure.
func (c *Config) Build(ctx context.Context, m *metrics.Recorder) (*afip.Services, error) {
	def, err := c.definition()
	if err != nil {
		return nil, err
	}
	st, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	sp, err := c.OpenSecrets(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	httpCfg := def.SOAPHTTPConfig()
	svc, err := afip.New(ctx, afip.Options{
		Environment:  def.AFIPEnvironment(),
		CUIT:         def.CUIT,
		Secrets:      sp,
		Store:        st,
		OwnStore:     true,
		DisableCache: !def.Cache.IsEnabled(),
		Endpoints:    def.Endpoints,
		Extra:        def.Services,
		HTTP:         &httpCfg,
		Logger:       c.logger(),
		Metrics:      m,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
