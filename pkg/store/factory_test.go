package store

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDriver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tests := []struct {
		name string
		cfg  Config
		want interface{}
	}{
		{name: "default is memory", cfg: Config{}, want: &MemoryStore{}},
		{name: "memory", cfg: Config{Driver: "memory"}, want: &MemoryStore{}},
		{name: "filesystem", cfg: Config{Driver: "filesystem", Dir: filepath.Join(t.TempDir(), "fs")}, want: &FileSystemStore{}},
		{name: "redis", cfg: Config{Driver: "redis", Redis: RedisConfig{Addr: mr.Addr()}}, want: &RedisStore{}},
		{name: "badger in memory", cfg: Config{Driver: "Badger", Badger: BadgerConfig{InMemory: true}}, want: &BadgerStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(ctx, tt.cfg, nil)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestNewUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Driver: "etcd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
	assert.Contains(t, err.Error(), "badger")
}
