package afip

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/auth"
	"github.com/systmms/afipws/pkg/secrets"
	"github.com/systmms/afipws/pkg/soap"
	"github.com/systmms/afipws/pkg/store"
)

// Options configures New
type Options struct {
	Environment Environment
	CUIT        int64
	Secrets     secrets.SecretsProvider

	// Store persists credentials. When nil, StoreConfig is opened;
	// when both are nil an in-memory store is used.
	Store       store.ObjectStore
	StoreConfig *store.Config
	// OwnStore makes Services.Close close Store
	OwnStore bool

	// DisableCache makes every call log in again. Credentials are still saved.
	DisableCache bool

	// Endpoints overrides catalog endpoints by service name
	Endpoints map[string]string
	// Extra services registered next to the catalog
	Extra []ServiceConfig

	HTTP    *soap.HTTPConfig
	Logger  *logging.Logger
	Metrics *metrics.Recorder
	Clock   func() time.Time
}

// Services holds the wired components for one environment and CUIT.
type Services struct {
	Environment Environment
	Auth        *auth.Service
	Client      *soap.Client
	Store       store.ObjectStore

	ownsStore bool
}

// New builds the authentication service and an authenticated client with
// every catalog service registered. WSAA itself is only registered on
// the login client.
func New(ctx context.Context, opts Options) (*Services, error) {
	if opts.Secrets == nil {
		if opts.OwnStore && opts.Store != nil {
			_ = opts.Store.Close()
		}
		return nil, &soap.ConfigurationError{Field: "secrets", Message: "a secrets provider is required"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	st, owned, err := openStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*Services, error) {
		if owned {
			_ = st.Close()
		}
		return nil, err
	}

	authOpts := []auth.Option{
		auth.WithEnabled(!opts.DisableCache),
		auth.WithLogger(logger),
		auth.WithMetrics(opts.Metrics),
	}
	if opts.Clock != nil {
		authOpts = append(authOpts, auth.WithClock(opts.Clock))
	}
	if opts.HTTP != nil {
		authOpts = append(authOpts, auth.WithHTTPConfig(*opts.HTTP))
	}

	wsaa := override(WSAA(opts.Environment), opts.Endpoints)
	cfg := auth.NewConfig(opts.Environment.IsProduction(), opts.CUIT)
	cfg.Endpoint = wsaa.Endpoint

	cache := auth.NewCredentialsCache(st, authOpts...)
	authSvc, err := auth.NewService(cfg, cache, opts.Secrets, authOpts...)
	if err != nil {
		return closeOnErr(err)
	}

	clientOpts := []soap.Option{
		soap.WithAuthenticator(authSvc),
		soap.WithLogger(logger),
		soap.WithMetrics(opts.Metrics),
	}
	if opts.HTTP != nil {
		clientOpts = append(clientOpts, soap.WithHTTPConfig(*opts.HTTP))
	}
	client := soap.NewClient(clientOpts...)

	services := append(Catalog(opts.Environment)[1:], opts.Extra...)
	for _, sc := range services {
		sc = override(sc, opts.Endpoints)
		if sc.Name == "" || sc.Endpoint == "" {
			return closeOnErr(&soap.ConfigurationError{
				Field:   "services",
				Message: fmt.Sprintf("service %q needs a name and an endpoint", sc.Name),
			})
		}
		client.RegisterService(sc.Name, sc.Endpoint, sc.SOAPActionBase)
	}

	logger.Debug("Registered %d services for the %s environment", len(services), opts.Environment)
	return &Services{
		Environment: opts.Environment,
		Auth:        authSvc,
		Client:      client,
		Store:       st,
		ownsStore:   owned,
	}, nil
}

// Close releases the store when New opened it
func (s *Services) Close() error {
	if s.ownsStore {
		return s.Store.Close()
	}
	return nil
}

func openStore(ctx context.Context, opts Options, logger *logging.Logger) (store.ObjectStore, bool, error) {
	switch {
	case opts.Store != nil:
		return opts.Store, opts.OwnStore, nil
	case opts.StoreConfig != nil:
		st, err := store.New(ctx, *opts.StoreConfig, logger)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open credentials store: %w", err)
		}
		return st, true, nil
	default:
		return store.NewMemory(), true, nil
	}
}

func override(sc ServiceConfig, endpoints map[string]string) ServiceConfig {
	if ep, ok := endpoints[sc.Name]; ok && ep != "" {
		sc.Endpoint = ep
	}
	return sc
}
