package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

const (
	stageCurrent  = "AWSCURRENT"
	stagePrevious = "AWSPREVIOUS"
)

// keyStoreVersion is one stored version of a key store secret
type keyStoreVersion struct {
	id     string
	text   *string
	binary []byte
}

// FakeSecretsManagerClient serves key stores the way Secrets Manager does:
// each secret keeps its AWSCURRENT and AWSPREVIOUS versions, and
// GetSecretValue resolves the requested staging label.
type FakeSecretsManagerClient struct {
	mu       sync.Mutex
	versions map[string]map[string]keyStoreVersion
	errors   map[string]error
	calls    map[string]int
}

// NewFakeSecretsManagerClient creates an empty fake
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		versions: make(map[string]map[string]keyStoreVersion),
		errors:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

// PutKeyStore stores blob as SecretBinary and makes it the current version.
func (f *FakeSecretsManagerClient) PutKeyStore(name string, blob []byte) {
	f.put(name, keyStoreVersion{binary: append([]byte(nil), blob...)})
}

// PutKeyStoreText stores text (base64) as SecretString and makes it current.
func (f *FakeSecretsManagerClient) PutKeyStoreText(name, text string) {
	f.put(name, keyStoreVersion{text: aws.String(text)})
}

func (f *FakeSecretsManagerClient) put(name string, v keyStoreVersion) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stages := f.versions[name]
	if stages == nil {
		stages = make(map[string]keyStoreVersion)
		f.versions[name] = stages
	}
	if cur, ok := stages[stageCurrent]; ok {
		stages[stagePrevious] = cur
	}
	v.id = fmt.Sprintf("v%d", len(stages)+1)
	stages[stageCurrent] = v
}

// FailWith makes every read of name return err
func (f *FakeSecretsManagerClient) FailWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[name] = err
}

// Calls returns how many times name was read
func (f *FakeSecretsManagerClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// GetSecretValue resolves the secret and staging label like the real service.
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	f.calls[name]++

	if err, ok := f.errors[name]; ok {
		return nil, err
	}

	stage := stageCurrent
	if params.VersionStage != nil {
		stage = *params.VersionStage
	}
	v, ok := f.versions[name][stage]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret value for staging label: %s", stage)),
		}
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name),
		Name:          aws.String(name),
		SecretString:  v.text,
		SecretBinary:  v.binary,
		VersionId:     aws.String(v.id),
		VersionStages: []string{stage},
	}, nil
}

// FakeSSMClient serves key stores held as SecureString parameters.
// Without WithDecryption the ciphertext placeholder is returned.
type FakeSSMClient struct {
	mu     sync.Mutex
	params map[string]string
	errors map[string]error
	calls  map[string]int
}

// NewFakeSSMClient creates an empty fake
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		params: make(map[string]string),
		errors: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// PutKeyStore stores the base64 key store under name
func (f *FakeSSMClient) PutKeyStore(name, base64Text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[name] = base64Text
}

// FailWith makes every read of name return err
func (f *FakeSSMClient) FailWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[name] = err
}

// Calls returns how many times name was read
func (f *FakeSSMClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	f.calls[name]++

	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	value, ok := f.params[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("Parameter " + name + " not found")}
	}
	if !aws.ToBool(params.WithDecryption) {
		value = "AQICAHh-encrypted"
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Value:   aws.String(value),
			Type:    ssmtypes.ParameterTypeSecureString,
			Version: 1,
			ARN:     aws.String("arn:aws:ssm:us-east-1:123456789012:parameter" + name),
		},
	}, nil
}
