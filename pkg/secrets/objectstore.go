package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/afipws/pkg/store"
)

// ObjectStoreSource reads a key store saved with SaveKeyStore.
type ObjectStoreSource struct {
	store store.ObjectStore
	name  string
}

func NewObjectStoreSource(s store.ObjectStore, name string) (*ObjectStoreSource, error) {
	if s == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if name == "" {
		return nil, fmt.Errorf("key store name is required")
	}
	return &ObjectStoreSource{store: s, name: name}, nil
}

func (s *ObjectStoreSource) Load(ctx context.Context) ([]byte, error) {
	// []byte content is stored as a base64 JSON string
	blob, ok, err := store.Read[[]byte](ctx, s.store, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read key store %s: %w", s.name, err)
	}
	if !ok || len(blob) == 0 {
		return nil, &NotFoundError{Kind: "keystore", Alias: s.name}
	}
	return blob, nil
}

func (s *ObjectStoreSource) Describe() string {
	return "store:" + s.name
}

// SaveKeyStore writes blob under name so ObjectStoreSource can read it back.
func SaveKeyStore(ctx context.Context, s store.ObjectStore, name string, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("key store is empty")
	}
	meta := map[string]interface{}{
		"kind":     "pkcs12",
		"saved_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.Save(ctx, s, name, blob, meta); err != nil {
		return fmt.Errorf("failed to save key store %s: %w", name, err)
	}
	return nil
}
