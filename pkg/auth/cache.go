package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/soap"
	"github.com/systmms/afipws/pkg/store"
)

// Loader performs a real login
type Loader func(ctx context.Context) (Credentials, error)

// CredentialsCache keeps one Credentials item per service name in an
// ObjectStore. Expiry is checked on every read; nothing is evicted.
type CredentialsCache struct {
	store   store.ObjectStore
	enabled bool
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.Recorder
	group   *singleflight.Group
}

// NewCredentialsCache creates a cache over st.
func NewCredentialsCache(st store.ObjectStore, opts ...Option) *CredentialsCache {
	o := applyOptions(opts)
	c := &CredentialsCache{
		store:   st,
		enabled: o.enabled,
		now:     o.now,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if o.singleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

// Enabled reports whether reads are served from the store
func (c *CredentialsCache) Enabled() bool {
	return c.enabled
}

// LoadIfRequired returns the stored credentials for serviceName while they
// are valid, and otherwise calls loader and stores its result.
//
// When the cache is disabled loader is always called and its result is
// still written. A loader error is returned unchanged and nothing is
// written.
func (c *CredentialsCache) LoadIfRequired(ctx context.Context, serviceName string, loader Loader) (Credentials, error) {
	if !c.enabled {
		c.metrics.RecordCacheLookup(metrics.CacheDisabled)
		return c.load(ctx, serviceName, loader)
	}

	creds, ok, err := c.Peek(ctx, serviceName)
	if err != nil {
		return Credentials{}, err
	}
	if ok && !creds.Expired(c.now()) {
		c.metrics.RecordCacheLookup(metrics.CacheHit)
		c.logger.Debug("Using cached credentials for %s (expire %s)", serviceName, creds.ExpiresAtTime().Format(time.RFC3339))
		return creds, nil
	}

	if ok {
		c.metrics.RecordCacheLookup(metrics.CacheExpired)
		c.logger.Debug("Cached credentials for %s expired at %s", serviceName, creds.ExpiresAtTime().Format(time.RFC3339))
	} else {
		c.metrics.RecordCacheLookup(metrics.CacheMiss)
		c.logger.Debug("No cached credentials for %s", serviceName)
	}

	if c.group == nil {
		return c.load(ctx, serviceName, loader)
	}

	// the flight outlives any single caller; each caller still honors its own ctx
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(serviceName, func() (interface{}, error) {
		// a flight that finished between our read and now already stored fresh credentials
		if creds, ok, err := c.Peek(flightCtx, serviceName); err == nil && ok && !creds.Expired(c.now()) {
			return creds, nil
		}
		return c.load(flightCtx, serviceName, loader)
	})

	select {
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credentials{}, res.Err
		}
		if res.Shared {
			c.logger.Debug("Shared credentials reload for %s", serviceName)
		}
		return res.Val.(Credentials), nil
	}
}

// Peek returns the stored credentials without validating or loading them.
// An item that cannot be decoded is reported as absent.
func (c *CredentialsCache) Peek(ctx context.Context, serviceName string) (Credentials, bool, error) {
	item, err := c.store.Read(ctx, serviceName)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("read cached credentials for %s: %w", serviceName, err)
	}
	if item == nil {
		return Credentials{}, false, nil
	}

	var creds Credentials
	if err := item.Decode(&creds); err != nil {
		c.logger.Warn("Ignoring unreadable cached credentials for %s: %v", serviceName, err)
		return Credentials{}, false, nil
	}
	return creds, true, nil
}

// load calls loader and stores the result. A store failure is logged and
// the fresh credentials are still returned: WSAA refuses a second ticket
// while the first is valid, so dropping them would lock the caller out.
// Credentials that are already expired are neither stored nor returned.
func (c *CredentialsCache) load(ctx context.Context, serviceName string, loader Loader) (Credentials, error) {
	creds, err := loader(ctx)
	if err != nil {
		return Credentials{}, err
	}

	now := c.now()
	if creds.Expired(now) {
		expiry := creds.ExpiresAtTime().Format(time.RFC3339)
		c.logger.Warn("Credentials loaded for %s already expired at %s", serviceName, expiry)
		return Credentials{}, &soap.ProtocolFault{
			Code:    "client",
			Message: "expired credentials",
			Detail:  fmt.Sprintf("credentials for %s expired at %s", serviceName, expiry),
		}
	}

	meta := map[string]interface{}{
		"service":    serviceName,
		"stored_at":  now.UTC().Format(time.RFC3339),
		"expires_at": creds.ExpiresAtTime().Format(time.RFC3339),
	}
	if err := store.Save(ctx, c.store, serviceName, creds, meta); err != nil {
		c.logger.Error("Failed to store credentials for %s: %v", serviceName, err)
	}
	return creds, nil
}
