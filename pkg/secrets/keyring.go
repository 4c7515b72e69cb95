package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringSource reads a base64 key store from the OS keyring.
type KeyringSource struct {
	service string
	user    string
}

func NewKeyringSource(service, user string) (*KeyringSource, error) {
	if service == "" || user == "" {
		return nil, fmt.Errorf("keyring service and user are required")
	}
	return &KeyringSource{service: service, user: user}, nil
}

func (s *KeyringSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.service + "/" + s.user}
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	return decodeString(value), nil
}

// Store saves blob in the keyring as base64 text.
func (s *KeyringSource) Store(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("key store is empty")
	}
	if err := keyring.Set(s.service, s.user, base64.StdEncoding.EncodeToString(blob)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func (s *KeyringSource) Describe() string {
	return "keyring:" + s.service + "/" + s.user
}
