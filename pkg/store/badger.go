package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/systmms/afipws/internal/logging"
)

// BadgerConfig configures the embedded badger driver
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// BadgerStore keeps items in an embedded badger database.
// Each Save is a single transaction.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
}

// NewBadger opens (or creates) a badger database
func NewBadger(cfg BadgerConfig, logger *logging.Logger) (*BadgerStore, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Dir != "":
		opts = badger.DefaultOptions(cfg.Dir)
	default:
		return nil, fmt.Errorf("badger directory required unless in_memory is set")
	}
	opts = opts.WithLogger(badgerLogger{logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, prefix: []byte("item:")}, nil
}

func (s *BadgerStore) key(id string) []byte {
	return append(append([]byte(nil), s.prefix...), id...)
}

func (s *BadgerStore) Read(_ context.Context, id string) (*Item, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		raw, err = entry.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %q: %w", id, err)
	}

	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("corrupt item %q: %w", id, err)
	}
	return &item, nil
}

func (s *BadgerStore) Save(_ context.Context, item Item) error {
	if err := validateID(item.ID); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %q: %w", item.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(item.ID), data)
	})
}

func (s *BadgerStore) Exists(_ context.Context, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger get %q: %w", id, err)
	}
	return true, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging to ours. Info is demoted to debug.
type badgerLogger struct {
	l *logging.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error("badger: "+format, args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn("badger: "+format, args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug("badger: "+format, args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug("badger: "+format, args...)
}
