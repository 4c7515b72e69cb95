// Package store provides the ObjectStore contract used to persist
// credentials and key stores, together with its drivers.
//
// An ObjectStore keeps Items keyed by id. Reads and writes are
// consistent: a reader observes either the previous item or the new one,
// never a partially written item. Every driver is safe for concurrent use.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidID is returned for ids a driver cannot address
var ErrInvalidID = errors.New("invalid item id")

// Item is the persisted envelope around a value.
type Item struct {
	ID       string                 `json:"id"`
	Content  json.RawMessage        `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Decode unmarshals the item content into v
func (i *Item) Decode(v interface{}) error {
	if err := json.Unmarshal(i.Content, v); err != nil {
		return fmt.Errorf("decode item %q: %w", i.ID, err)
	}
	return nil
}

// NewItem marshals content into a new Item
func NewItem(id string, content interface{}, metadata map[string]interface{}) (Item, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return Item{}, fmt.Errorf("encode item %q: %w", id, err)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return Item{ID: id, Content: raw, Metadata: metadata}, nil
}

// ObjectStore is a general purpose keyed store.
type ObjectStore interface {
	// Read returns the item, or nil and no error when it does not exist.
	Read(ctx context.Context, id string) (*Item, error)
	// Save inserts or replaces the item with the same id.
	Save(ctx context.Context, item Item) error
	// Exists reports whether an item with the id is stored.
	Exists(ctx context.Context, id string) (bool, error)
	// Close releases driver resources.
	Close() error
}

// Read loads the item and decodes its content into a T.
// ok is false when the item does not exist.
func Read[T any](ctx context.Context, s ObjectStore, id string) (value T, ok bool, err error) {
	item, err := s.Read(ctx, id)
	if err != nil || item == nil {
		return value, false, err
	}
	if err := item.Decode(&value); err != nil {
		return value, false, err
	}
	return value, true, nil
}

// Save encodes value and stores it under id.
func Save[T any](ctx context.Context, s ObjectStore, id string, value T, metadata map[string]interface{}) error {
	item, err := NewItem(id, value, metadata)
	if err != nil {
		return err
	}
	return s.Save(ctx, item)
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func cloneItem(item Item) Item {
	out := Item{ID: item.ID}
	if item.Content != nil {
		out.Content = append(json.RawMessage(nil), item.Content...)
	}
	out.Metadata = make(map[string]interface{}, len(item.Metadata))
	for k, v := range item.Metadata {
		out.Metadata[k] = v
	}
	return out
}
