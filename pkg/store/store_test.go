package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedLogin struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// runStoreContract exercises the behaviour every driver must share.
func runStoreContract(t *testing.T, s ObjectStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing item reads as nil", func(t *testing.T) {
		item, err := s.Read(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, item)

		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save then read round trips", func(t *testing.T) {
		want := cachedLogin{Token: "T1", ExpiresAt: 1700000000000}
		require.NoError(t, Save(ctx, s, "wsfe", want, map[string]interface{}{"cuit": "20304050603"}))

		got, ok, err := Read[cachedLogin](ctx, s, "wsfe")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)

		item, err := s.Read(ctx, "wsfe")
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "wsfe", item.ID)
		assert.Equal(t, "20304050603", item.Metadata["cuit"])

		ok, err = s.Exists(ctx, "wsfe")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("save replaces existing item", func(t *testing.T) {
		require.NoError(t, Save(ctx, s, "wsaa", cachedLogin{Token: "old"}, nil))
		require.NoError(t, Save(ctx, s, "wsaa", cachedLogin{Token: "new"}, nil))

		got, ok, err := Read[cachedLogin](ctx, s, "wsaa")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "new", got.Token)
	})

	t.Run("concurrent writers never produce torn reads", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, Save(ctx, s, "ws_sr_padron_a4", cachedLogin{Token: fmt.Sprintf("token-%d", i)}, nil))
				_, _, err := Read[cachedLogin](ctx, s, "ws_sr_padron_a4")
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, ok, err := Read[cachedLogin](ctx, s, "ws_sr_padron_a4")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Contains(t, got.Token, "token-")
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		err := Save(ctx, s, "", cachedLogin{}, nil)
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	runStoreContract(t, NewMemory())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, Save(ctx, s, "a", "value", map[string]interface{}{"k": "v"}))
	item, err := s.Read(ctx, "a")
	require.NoError(t, err)
	item.Metadata["k"] = "mutated"

	again, err := s.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, 1, s.Len())
}

func TestFileSystemStore(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystem(filepath.Join(t.TempDir(), "nested", "store"))
	require.NoError(t, err)
	runStoreContract(t, s)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files must be renamed or removed")
	}
}

func TestFileSystemStoreRejectsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewFileSystem(path)
	assert.Error(t, err)
}

func TestFileSystemStoreEscapesIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	s, err := NewFileSystem(dir)
	require.NoError(t, err)

	require.NoError(t, Save(ctx, s, "../escape", "x", nil))
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	assert.True(t, os.IsNotExist(err))

	got, ok, err := Read[string](ctx, s, "../escape")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestFileSystemStoreCorruptItem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileSystem(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"), []byte("{not json"), 0o600))

	_, err = s.Read(context.Background(), "broken")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
	assert.True(t, mr.Exists("afipws:store:wsfe"))
}

func TestRedisStoreUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)

	_, err = NewRedis(ctx, RedisConfig{})
	assert.Error(t, err)
}

func TestBadgerStore(t *testing.T) {
	t.Parallel()

	s, err := NewBadger(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}

func TestBadgerStoreOnDiskSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadger(BadgerConfig{Dir: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, Save(ctx, s, "wsfe", cachedLogin{Token: "persisted"}, nil))
	require.NoError(t, s.Close())

	reopened, err := NewBadger(BadgerConfig{Dir: dir}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := Read[cachedLogin](ctx, reopened, "wsfe")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Token)
}

func TestNewBadgerRequiresLocation(t *testing.T) {
	t.Parallel()
	_, err := NewBadger(BadgerConfig{}, nil)
	assert.Error(t, err)
}
