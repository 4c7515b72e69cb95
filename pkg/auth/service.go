package auth

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"time"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/secrets"
	"github.com/systmms/afipws/pkg/soap"
	"github.com/systmms/afipws/pkg/store"
)

// Service logs in to WSAA. It implements soap.Authenticator.
type Service struct {
	cfg     Config
	cache   *CredentialsCache
	secrets secrets.SecretsProvider
	client  *soap.Client
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// NewService creates a Service. A nil cache is replaced by an in-memory
// one. Unless WithClient is given, the service builds its own
// unauthenticated client; cfg.Endpoint is registered on it under
// cfg.ServiceName either way.
func NewService(cfg Config, cache *CredentialsCache, sp secrets.SecretsProvider, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, &soap.ConfigurationError{Field: "secrets", Message: "a secrets provider is required"}
	}

	o := applyOptions(opts)
	if cache == nil {
		cache = NewCredentialsCache(store.NewMemory(), opts...)
	}

	client := o.client
	if client == nil {
		if cfg.Endpoint == "" {
			return nil, &soap.ConfigurationError{Field: "endpoint", Message: "WSAA endpoint is required"}
		}
		clientOpts := []soap.Option{soap.WithLogger(o.logger), soap.WithMetrics(o.metrics)}
		if o.httpConfig != nil {
			clientOpts = append(clientOpts, soap.WithHTTPConfig(*o.httpConfig))
		}
		client = soap.NewClient(clientOpts...)
	}
	if cfg.Endpoint != "" {
		client.RegisterService(cfg.ServiceName, cfg.Endpoint, "")
	}

	return &Service{
		cfg:     cfg,
		cache:   cache,
		secrets: sp,
		client:  client,
		now:     o.now,
		logger:  o.logger.With("component", "wsaa"),
		metrics: o.metrics,
	}, nil
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Cache returns the credentials cache
func (s *Service) Cache() *CredentialsCache {
	return s.cache
}

// Authenticate returns valid credentials for serviceName, logging in only
// when the cache holds none.
func (s *Service) Authenticate(ctx context.Context, serviceName string) (Credentials, error) {
	return s.cache.LoadIfRequired(ctx, serviceName, func(ctx context.Context) (Credentials, error) {
		creds, err := s.login(ctx, serviceName)
		if err != nil {
			s.metrics.RecordLogin(serviceName, loginOutcome(err))
			return Credentials{}, err
		}
		s.metrics.RecordLogin(serviceName, metrics.OutcomeSuccess)
		return creds, nil
	})
}

func (s *Service) login(ctx context.Context, serviceName string) (Credentials, error) {
	cert, key, err := s.material(ctx)
	if err != nil {
		return Credentials{}, err
	}

	ticket := NewLoginTicket(cert.Subject.String(), s.cfg.DN, serviceName, s.now())
	payload, err := ticket.Marshal()
	if err != nil {
		return Credentials{}, &soap.SigningError{Op: "marshal ticket", Err: err}
	}
	signed, err := SignTicket(payload, cert, key)
	if err != nil {
		return Credentials{}, &soap.SigningError{Op: "sign ticket", Err: err}
	}

	s.logger.Info("Requesting access ticket for %s", serviceName)
	doc, err := s.client.Call(ctx, NewLoginRequest(s.cfg.ServiceName, signed))
	if err != nil {
		return Credentials{}, err
	}

	creds, err := parseLoginResponse(doc)
	if err != nil {
		return Credentials{}, err
	}
	creds.ServiceName = serviceName
	creds.CUIT = s.cfg.CUIT

	s.logger.Info("Obtained access ticket for %s valid until %s",
		serviceName, creds.ExpiresAtTime().Format(time.RFC3339))
	s.logger.Debug("token=%s sign=%s", logging.Secret(creds.Token), logging.Secret(creds.Sign))
	return creds, nil
}

type materialProvider interface {
	Material(ctx context.Context) (secrets.SigningMaterial, error)
}

// material loads certificate and key. A missing key store or entry is
// returned as is; anything else is a SigningError.
func (s *Service) material(ctx context.Context) (*x509.Certificate, crypto.Signer, error) {
	wrap := func(err error) error {
		var nf *secrets.NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		return &soap.SigningError{Op: "load key material", Err: err}
	}

	if mp, ok := s.secrets.(materialProvider); ok {
		m, err := mp.Material(ctx)
		if err != nil {
			return nil, nil, wrap(err)
		}
		return m.Certificate, m.PrivateKey, nil
	}

	cert, err := s.secrets.Certificate(ctx)
	if err != nil {
		return nil, nil, wrap(err)
	}
	key, err := s.secrets.PrivateKey(ctx)
	if err != nil {
		return nil, nil, wrap(err)
	}
	return cert, key, nil
}

func parseLoginResponse(doc *soap.Document) (Credentials, error) {
	malformed := func(err error) error {
		return &soap.ProtocolFault{Code: "client", Message: "malformed login response", Detail: err.Error()}
	}

	ticket := doc.Scope("loginTicketResponse")
	if ticket == nil {
		return Credentials{}, malformed(errors.New("missing loginTicketResponse"))
	}

	var (
		creds Credentials
		err   error
	)
	if creds.Token, err = ticket.String("token"); err != nil {
		return Credentials{}, malformed(err)
	}
	if creds.Sign, err = ticket.String("sign"); err != nil {
		return Credentials{}, malformed(err)
	}
	if creds.Source, err = ticket.String("source"); err != nil {
		return Credentials{}, malformed(err)
	}
	if creds.Destination, err = ticket.String("destination"); err != nil {
		return Credentials{}, malformed(err)
	}
	if creds.IssuedAt, err = ticket.Millis("generationTime"); err != nil {
		return Credentials{}, malformed(err)
	}
	if creds.ExpiresAt, err = ticket.Millis("expirationTime"); err != nil {
		return Credentials{}, malformed(err)
	}
	return creds, nil
}

func loginOutcome(err error) string {
	var (
		fault   *soap.ProtocolFault
		svcErr  *soap.ServiceError
		transp  *soap.TransportError
		signErr *soap.SigningError
		nf      *secrets.NotFoundError
	)
	switch {
	case errors.As(err, &fault):
		return metrics.OutcomeFault
	case errors.As(err, &svcErr):
		return metrics.OutcomeServiceError
	case errors.As(err, &transp):
		return metrics.OutcomeTransport
	case errors.As(err, &signErr), errors.As(err, &nf):
		return metrics.OutcomeSigning
	default:
		return metrics.OutcomeConfiguration
	}
}

// Compile-time interface check
var _ soap.Authenticator = (*Service)(nil)
