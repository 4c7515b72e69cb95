package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/afipws/pkg/auth"
	"github.com/systmms/afipws/pkg/soap"
	"github.com/systmms/afipws/pkg/store"
	"github.com/systmms/afipws/tests/testutil"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingLoader struct {
	calls atomic.Int32
	fn    func(n int32) (auth.Credentials, error)
}

func (l *countingLoader) Load(ctx context.Context) (auth.Credentials, error) {
	n := l.calls.Add(1)
	return l.fn(n)
}

func credsExpiringAt(token string, expires time.Time) auth.Credentials {
	return auth.Credentials{
		ServiceName: "wsfe",
		Token:       token,
		Sign:        "sign-" + token,
		CUIT:        20304050603,
		Source:      "CN=wsaa",
		Destination: "CN=test",
		IssuedAt:    expires.Add(-12 * time.Hour).UnixMilli(),
		ExpiresAt:   expires.UnixMilli(),
	}
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCredentialsCache_MissHitExpire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clk := newClock(t0)
	st := store.NewMemory()
	cache := auth.NewCredentialsCache(st, auth.WithClock(clk.Now))
	assert.True(t, cache.Enabled())

	loader := &countingLoader{fn: func(n int32) (auth.Credentials, error) {
		if n == 1 {
			return credsExpiringAt("T1", t0.Add(12*time.Hour)), nil
		}
		return credsExpiringAt("T2", t0.Add(24*time.Hour)), nil
	}}

	creds, err := cache.LoadIfRequired(ctx, "wsfe", loader.Load)
	require.NoError(t, err)
	assert.Equal(t, "T1", creds.Token)
	assert.EqualValues(t, 1, loader.calls.Load())

	stored, ok, err := cache.Peek(ctx, "wsfe")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, creds, stored)

	clk.Set(t0.Add(11 * time.Hour))
	creds, err = cache.LoadIfRequired(ctx, "wsfe", loader.Load)
	require.NoError(t, err)
	assert.Equal(t, "T1", creds.Token)
	assert.EqualValues(t, 1, loader.calls.Load(), "a valid entry must not call the loader")

	clk.Set(t0.Add(12 * time.Hour))
	creds, err = cache.LoadIfRequired(ctx, "wsfe", loader.Load)
	require.NoError(t, err)
	assert.Equal(t, "T2", creds.Token, "an entry expiring now is reloaded")
	assert.EqualValues(t, 2, loader.calls.Load())

	stored, _, err = cache.Peek(ctx, "wsfe")
	require.NoError(t, err)
	assert.Equal(t, "T2", stored.Token)
}

func TestCredentialsCache_KeyedByServiceName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache := auth.NewCredentialsCache(store.NewMemory(), auth.WithClock(newClock(t0).Now))
	loader := &countingLoader{fn: func(n int32) (auth.Credentials, error) {
		return credsExpiringAt("T", t0.Add(time.Hour)), nil
	}}

	_, err := cache.LoadIfRequired(ctx, "wsfe", loader.Load)
	require.NoError(t, err)
	_, err = cache.LoadIfRequired(ctx, "ws_sr_padron_a4", loader.Load)
	require.NoError(t, err)
	_, err = cache.LoadIfRequired(ctx, "wsfe", loader.Load)
	require.NoError(t, err)

	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCredentialsCache_Disabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemory()
	cache := auth.NewCredentialsCache(st, auth.WithEnabled(false), auth.WithClock(newClock(t0).Now))
	assert.False(t, cache.Enabled())

	loader := &countingLoader{fn: func(n int32) (auth.Credentials, error) {
		return credsExpiringAt("T", t0.Add(12*time.Hour)), nil
	}}

	for i := 0; i < 3; i++ {
		_, err := cache.LoadIfRequired(ctx, "wsfe", loader.Load)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, loader.calls.Load())

	exists, err := st.Exists(ctx, "wsfe")
	require.NoError(t, err)
	assert.True(t, exists, "a disabled cache still writes through")
}

func TestCredentialsCache_LoaderError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemory()
	cache := auth.NewCredentialsCache(st)
	boom := errors.New("login failed")

	_, err := cache.LoadIfRequired(ctx, "wsfe", func(context.Context) (auth.Credentials, error) {
		return auth.Credentials{}, boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 0, st.Len())
}

func TestCredentialsCache_UnreadableEntryIsReloaded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemory()
	require.NoError(t, st.Save(ctx, store.Item{ID: "wsfe", Content: json.RawMessage(`"not credentials"`)}))

	cache := auth.NewCredentialsCache(st, auth.WithClock(newClock(t0).Now))
	creds, err := cache.LoadIfRequired(ctx, "wsfe", func(context.Context) (auth.Credentials, error) {
		return credsExpiringAt("fresh", t0.Add(time.Hour)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", creds.Token)
}

type faultyStore struct {
	store.ObjectStore
	readErr error
	saveErr error
}

func (f faultyStore) Read(ctx context.Context, id string) (*store.Item, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.ObjectStore.Read(ctx, id)
}

func (f faultyStore) Save(ctx context.Context, item store.Item) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.ObjectStore.Save(ctx, item)
}

func TestCredentialsCache_StoreFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	readErr := errors.New("redis down")
	cache := auth.NewCredentialsCache(faultyStore{ObjectStore: store.NewMemory(), readErr: readErr})
	_, err := cache.LoadIfRequired(ctx, "wsfe", func(context.Context) (auth.Credentials, error) {
		t.Fatal("loader must not run when the store cannot be read")
		return auth.Credentials{}, nil
	})
	assert.ErrorIs(t, err, readErr)

	tl := testutil.NewTestLogger(t)
	cache = auth.NewCredentialsCache(
		faultyStore{ObjectStore: store.NewMemory(), saveErr: errors.New("disk full")},
		auth.WithClock(newClock(t0).Now),
		auth.WithLogger(tl.Logger()),
	)
	creds, err := cache.LoadIfRequired(ctx, "wsfe", func(context.Context) (auth.Credentials, error) {
		return credsExpiringAt("T1", t0.Add(time.Hour)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "T1", creds.Token)
	tl.AssertContains(t, "Failed to store credentials for wsfe: disk full")
	tl.AssertLogCount(t, "error", 1)
}

func TestCredentialsCache_ExpiredLoadIsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tl := testutil.NewTestLogger(t)
	st := store.NewMemory()
	cache := auth.NewCredentialsCache(st,
		auth.WithClock(newClock(t0).Now), auth.WithLogger(tl.Logger()))

	creds, err := cache.LoadIfRequired(ctx, "wsfe", func(context.Context) (auth.Credentials, error) {
		return credsExpiringAt("stale", t0.Add(-time.Minute)), nil
	})
	var fault *soap.ProtocolFault
	require.True(t, errors.As(err, &fault), "got %v", err)
	assert.Equal(t, "expired credentials", fault.Message)
	assert.Contains(t, fault.Detail, "wsfe")
	assert.Empty(t, creds.Token)

	_, ok, err := cache.Peek(ctx, "wsfe")
	require.NoError(t, err)
	assert.False(t, ok, "expired credentials are not stored")

	tl.AssertContains(t, "Credentials loaded for wsfe already expired")
	tl.AssertLogCount(t, "warn", 1)
	tl.AssertNotContains(t, "stale")
}

func TestCredentialsCache_SingleFlightSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	cache := auth.NewCredentialsCache(store.NewMemory(), auth.WithClock(newClock(t0).Now))

	var calls atomic.Int32
	release := make(chan struct{})
	loaderErr := make(chan error, 1)
	loader := func(ctx context.Context) (auth.Credentials, error) {
		calls.Add(1)
		<-release
		loaderErr <- ctx.Err()
		return credsExpiringAt("T1", t0.Add(12*time.Hour)), nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.LoadIfRequired(ctxA, "wsfe", loader)
		errA <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		creds auth.Credentials
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		creds, err := cache.LoadIfRequired(context.Background(), "wsfe", loader)
		resB <- result{creds, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "T1", b.creds.Token)
	assert.NoError(t, <-loaderErr, "the login runs detached from the canceled caller")
	assert.EqualValues(t, 1, calls.Load())
}

func TestCredentialsCache_SingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache := auth.NewCredentialsCache(store.NewMemory(), auth.WithClock(newClock(t0).Now))
	loader := &countingLoader{fn: func(n int32) (auth.Credentials, error) {
		time.Sleep(20 * time.Millisecond)
		return credsExpiringAt("T1", t0.Add(12*time.Hour)), nil
	}}

	var wg sync.WaitGroup
	tokens := make([]string, 16)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds, err := cache.LoadIfRequired(ctx, "wsfe", loader.Load)
			assert.NoError(t, err)
			tokens[i] = creds.Token
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, loader.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, "T1", tok)
	}
}

func TestCredentialsCache_WithoutSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache := auth.NewCredentialsCache(store.NewMemory(),
		auth.WithClock(newClock(t0).Now), auth.WithSingleFlight(false))

	release := make(chan struct{})
	loader := &countingLoader{fn: func(n int32) (auth.Credentials, error) {
		<-release
		return credsExpiringAt("T", t0.Add(time.Hour)), nil
	}}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.LoadIfRequired(ctx, "wsfe", loader.Load)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return loader.calls.Load() == 2 }, time.Second, 5*time.Millisecond,
		"both cold callers log in independently")
	close(release)
	wg.Wait()
}
