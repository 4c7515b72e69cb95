package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SecretsManagerClientAPI is the subset of the Secrets Manager client in use.
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMClientAPI is the subset of the SSM client in use.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSConfig selects the region and, for LocalStack or tests, a custom
// endpoint with static credentials. With RoleARN set the base credentials
// are used to assume that role first.
type AWSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	RoleARN         string `yaml:"role_arn"`
	ExternalID      string `yaml:"external_id"`
}

const roleSessionName = "afipws"

func (c AWSConfig) load(ctx context.Context) (aws.Config, error) {
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}

	configOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	if c.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(c.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.RoleARN != "" {
		cfg.Credentials = aws.NewCredentialsCache(c.assumeRole(cfg))
	}
	return cfg, nil
}

func (c AWSConfig) assumeRole(base aws.Config) aws.CredentialsProvider {
	client := sts.NewFromConfig(base)
	return stscreds.NewAssumeRoleProvider(client, c.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = roleSessionName
		if c.ExternalID != "" {
			o.ExternalID = aws.String(c.ExternalID)
		}
	})
}

// AWSSecretsManagerSource reads the key store from a Secrets Manager secret.
// SecretBinary is used as-is, SecretString is base64-decoded.
type AWSSecretsManagerSource struct {
	secretID string
	version  string
	client   SecretsManagerClientAPI
}

// AWSSecretsManagerOption configures an AWSSecretsManagerSource.
type AWSSecretsManagerOption func(*AWSSecretsManagerSource)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSSecretsManagerOption {
	return func(s *AWSSecretsManagerSource) {
		s.client = client
	}
}

// WithSecretVersionStage reads a staging label other than AWSCURRENT.
func WithSecretVersionStage(stage string) AWSSecretsManagerOption {
	return func(s *AWSSecretsManagerSource) {
		s.version = stage
	}
}

func NewAWSSecretsManagerSource(ctx context.Context, secretID string, cfg AWSConfig, opts ...AWSSecretsManagerOption) (*AWSSecretsManagerSource, error) {
	if secretID == "" {
		return nil, fmt.Errorf("secret id is required")
	}
	s := &AWSSecretsManagerSource{secretID: secretID}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := cfg.load(ctx)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}
	return s, nil
}

func (s *AWSSecretsManagerSource) Load(ctx context.Context) ([]byte, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.secretID)}
	if s.version != "" {
		input.VersionStage = aws.String(s.version)
	}

	out, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.secretID}
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", s.secretID, err)
	}

	switch {
	case len(out.SecretBinary) > 0:
		return append([]byte(nil), out.SecretBinary...), nil
	case out.SecretString != nil && *out.SecretString != "":
		return decodeString(*out.SecretString), nil
	default:
		return nil, &NotFoundError{Kind: "keystore", Alias: s.secretID}
	}
}

func (s *AWSSecretsManagerSource) Describe() string {
	return "aws-secretsmanager:" + s.secretID
}

// AWSSSMSource reads the key store from a SecureString parameter holding
// base64 text.
type AWSSSMSource struct {
	name   string
	client SSMClientAPI
}

// AWSSSMOption configures an AWSSSMSource.
type AWSSSMOption func(*AWSSSMSource)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) AWSSSMOption {
	return func(s *AWSSSMSource) {
		s.client = client
	}
}

func NewAWSSSMSource(ctx context.Context, name string, cfg AWSConfig, opts ...AWSSSMOption) (*AWSSSMSource, error) {
	if name == "" {
		return nil, fmt.Errorf("parameter name is required")
	}
	s := &AWSSSMSource{name: name}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := cfg.load(ctx)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*ssm.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = ssm.NewFromConfig(awsCfg, clientOpts...)
	}
	return s, nil
}

func (s *AWSSSMSource) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.name}
		}
		return nil, fmt.Errorf("failed to get parameter %s: %w", s.name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return nil, &NotFoundError{Kind: "keystore", Alias: s.name}
	}
	return decodeString(*out.Parameter.Value), nil
}

func (s *AWSSSMSource) Describe() string {
	return "aws-ssm:" + s.name
}
