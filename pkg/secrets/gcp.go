package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerClientAPI is the subset of the Secret Manager client in use.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// GCPConfig identifies the secret holding the key store.
type GCPConfig struct {
	ProjectID             string `yaml:"project_id"`
	Secret                string `yaml:"secret"`
	Version               string `yaml:"version"` // defaults to "latest"
	ServiceAccountKeyPath string `yaml:"service_account_key_path"`
}

// GCPSecretManagerSource reads the key store from a secret version payload.
type GCPSecretManagerSource struct {
	name   string
	client GCPSecretManagerClientAPI
}

// GCPOption configures a GCPSecretManagerSource.
type GCPOption func(*GCPSecretManagerSource)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(s *GCPSecretManagerSource) {
		s.client = client
	}
}

func NewGCPSecretManagerSource(ctx context.Context, cfg GCPConfig, opts ...GCPOption) (*GCPSecretManagerSource, error) {
	if cfg.ProjectID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("project id and secret name are required")
	}
	version := cfg.Version
	if version == "" {
		version = "latest"
	}

	s := &GCPSecretManagerSource{
		name: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", cfg.ProjectID, cfg.Secret, version),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOptions []option.ClientOption
		if cfg.ServiceAccountKeyPath != "" {
			clientOptions = append(clientOptions, option.WithCredentialsFile(cfg.ServiceAccountKeyPath))
		}
		client, err := secretmanager.NewClient(ctx, clientOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
		}
		s.client = gcpClient{client}
	}
	return s, nil
}

func (s *GCPSecretManagerSource) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: s.name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.name}
		}
		return nil, fmt.Errorf("failed to access secret %s: %w", s.name, err)
	}
	if resp.GetPayload() == nil || len(resp.GetPayload().GetData()) == 0 {
		return nil, &NotFoundError{Kind: "keystore", Alias: s.name}
	}
	return decodePayload(append([]byte(nil), resp.GetPayload().GetData()...)), nil
}

func (s *GCPSecretManagerSource) Describe() string {
	return "gcp-secretmanager:" + s.name
}

func (s *GCPSecretManagerSource) Close() error {
	return s.client.Close()
}

// gcpClient drops the variadic call options of the generated client.
type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpClient) Close() error {
	return g.c.Close()
}
