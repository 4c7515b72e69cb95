package auth

import (
	"time"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
	"github.com/systmms/afipws/pkg/soap"
)

// Credentials is the access ticket issued by WSAA.
type Credentials = soap.Credentials

type options struct {
	enabled      bool
	singleFlight bool
	now          func() time.Time
	logger       *logging.Logger
	metrics      *metrics.Recorder
	client       *soap.Client
	httpConfig   *soap.HTTPConfig
}

func defaultOptions() options {
	return options{
		enabled:      true,
		singleFlight: true,
		now:          time.Now,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Option configures a CredentialsCache or a Service. Options that do not
// apply to the component being built are ignored.
type Option func(*options)

// WithEnabled turns cache reads on or off. A disabled cache still writes.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithSingleFlight controls whether concurrent reloads of the same service
// share one login. Enabled by default.
func WithSingleFlight(enabled bool) Option {
	return func(o *options) {
		o.singleFlight = enabled
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithClient sets the unauthenticated client used for loginCms (for testing)
func WithClient(c *soap.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithHTTPConfig sets the transport settings of the login client
func WithHTTPConfig(cfg soap.HTTPConfig) Option {
	return func(o *options) {
		o.httpConfig = &cfg
	}
}
