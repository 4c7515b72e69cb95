package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"
)

// DefaultAkeylessGateway is the public Akeyless API
const DefaultAkeylessGateway = "https://api.akeyless.io"

// errAkeylessItemNotFound is returned by the SDK client when the response
// does not carry the requested path.
var errAkeylessItemNotFound = errors.New("akeyless item not found")

// AkeylessClientAPI is the subset of Akeyless operations in use.
// This allows for mocking in tests
type AkeylessClientAPI interface {
	Authenticate(ctx context.Context) (string, error)
	GetSecretValue(ctx context.Context, token, path string, version int32) (string, error)
}

// AkeylessConfig selects the gateway and the auth method. AccessType is
// one of api_key (default), aws_iam, azure_ad or gcp.
type AkeylessConfig struct {
	GatewayURL  string `yaml:"gateway_url"`
	AccessID    string `yaml:"access_id"`
	AccessKey   string `yaml:"access_key"`
	AccessType  string `yaml:"access_type"`
	CloudID     string `yaml:"cloud_id"`
	GCPAudience string `yaml:"gcp_audience"`
}

// AkeylessSource reads the key store from an Akeyless static secret holding
// the base64 text of the PKCS#12 file.
type AkeylessSource struct {
	path    string
	version int32
	client  AkeylessClientAPI
}

// AkeylessOption configures an AkeylessSource.
type AkeylessOption func(*AkeylessSource)

// WithAkeylessClient sets a custom Akeyless client (for testing)
func WithAkeylessClient(client AkeylessClientAPI) AkeylessOption {
	return func(s *AkeylessSource) {
		s.client = client
	}
}

// WithAkeylessVersion pins a secret version; zero reads the latest.
func WithAkeylessVersion(version int32) AkeylessOption {
	return func(s *AkeylessSource) {
		s.version = version
	}
}

func NewAkeylessSource(path string, cfg AkeylessConfig, opts ...AkeylessOption) (*AkeylessSource, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return nil, fmt.Errorf("secret path is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	s := &AkeylessSource{path: path}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		if cfg.AccessID == "" {
			return nil, fmt.Errorf("akeyless access id is required")
		}
		s.client = newAkeylessSDKClient(cfg)
	}
	return s, nil
}

func (s *AkeylessSource) Load(ctx context.Context) ([]byte, error) {
	token, err := s.client.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("akeyless authentication failed: %w", err)
	}

	value, err := s.client.GetSecretValue(ctx, token, s.path, s.version)
	if err != nil {
		if isAkeylessNotFound(err) {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.path}
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", s.path, err)
	}
	if value == "" {
		return nil, &NotFoundError{Kind: "keystore", Alias: s.path}
	}
	return decodeString(value), nil
}

func (s *AkeylessSource) Describe() string {
	return "akeyless:" + s.path
}

func isAkeylessNotFound(err error) bool {
	if errors.Is(err, errAkeylessItemNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "not found") || strings.Contains(msg, "itemNotFound")
}

// akeylessSDKClient implements AkeylessClientAPI with the official SDK
type akeylessSDKClient struct {
	api *akeyless.APIClient
	cfg AkeylessConfig
}

func newAkeylessSDKClient(cfg AkeylessConfig) *akeylessSDKClient {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultAkeylessGateway
	}
	configuration := akeyless.NewConfiguration()
	configuration.Servers = []akeyless.ServerConfiguration{{URL: cfg.GatewayURL}}
	return &akeylessSDKClient{api: akeyless.NewAPIClient(configuration), cfg: cfg}
}

func (c *akeylessSDKClient) Authenticate(ctx context.Context) (string, error) {
	body := akeyless.NewAuthWithDefaults()
	body.SetAccessId(c.cfg.AccessID)

	switch c.cfg.AccessType {
	case "", "api_key":
		body.SetAccessKey(c.cfg.AccessKey)
	case "aws_iam":
		body.SetAccessType("aws_iam")
	case "azure_ad":
		body.SetAccessType("azure_ad")
		if c.cfg.CloudID != "" {
			body.SetCloudId(c.cfg.CloudID)
		}
	case "gcp":
		body.SetAccessType("gcp")
		if c.cfg.GCPAudience != "" {
			body.SetGcpAudience(c.cfg.GCPAudience)
		}
	default:
		return "", fmt.Errorf("unsupported access type %q", c.cfg.AccessType)
	}

	res, _, err := c.api.V2Api.Auth(ctx).Body(*body).Execute()
	if err != nil {
		return "", err
	}
	return res.GetToken(), nil
}

func (c *akeylessSDKClient) GetSecretValue(ctx context.Context, token, path string, version int32) (string, error) {
	body := akeyless.NewGetSecretValue([]string{path})
	body.SetToken(token)
	if version > 0 {
		body.SetVersion(version)
	}

	res, _, err := c.api.V2Api.GetSecretValue(ctx).Body(*body).Execute()
	if err != nil {
		return "", err
	}
	value, ok := res[path]
	if !ok {
		return "", errAkeylessItemNotFound
	}
	switch v := interface{}(value).(type) {
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

var _ AkeylessClientAPI = (*akeylessSDKClient)(nil)
