package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
)

const (
	// DefaultSOAPAction is sent when a service has no SOAPAction base
	DefaultSOAPAction = "AFIP"
	// ContentType of every request. Services with a SOAPAction base also
	// carry the action as a media type parameter.
	ContentType = "application/soap+xml; charset=utf-8"
)

// Authenticator obtains credentials for a service
type Authenticator interface {
	Authenticate(ctx context.Context, serviceName string) (Credentials, error)
}

// ServiceInfo is a registry entry
type ServiceInfo struct {
	Name           string `json:"name"`
	Endpoint       string `json:"endpoint"`
	SOAPActionBase string `json:"soap_action_base,omitempty"`
}

// Action returns the SOAPAction for operation
func (s ServiceInfo) Action(operation string) string {
	if s.SOAPActionBase == "" {
		return DefaultSOAPAction
	}
	return strings.TrimSuffix(s.SOAPActionBase, "/") + "/" + operation
}

// ContentType returns the Content-Type header for operation
func (s ServiceInfo) ContentType(operation string) string {
	if s.SOAPActionBase == "" {
		return ContentType
	}
	return fmt.Sprintf("%s; action=%q", ContentType, s.Action(operation))
}

// Client calls operations on registered services
type Client struct {
	mu        sync.RWMutex
	services  map[string]ServiceInfo
	auth      Authenticator
	http      Doer
	userAgent string
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithAuthenticator makes the client authenticated
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) {
		c.auth = a
	}
}

// WithHTTPConfig builds the HTTP client from cfg
func WithHTTPConfig(cfg HTTPConfig) Option {
	return func(c *Client) {
		c.http = NewHTTPClient(cfg)
		c.userAgent = cfg.withDefaults().UserAgent
	}
}

// WithHTTPClient sets the HTTP client (for testing)
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// NewClient creates a client with an empty registry
func NewClient(opts ...Option) *Client {
	c := &Client{
		services:  make(map[string]ServiceInfo),
		userAgent: DefaultHTTPConfig().UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(DefaultHTTPConfig())
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	return c
}

// RegisterService adds or replaces a registry entry
func (c *Client) RegisterService(name, endpoint, soapActionBase string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[name] = ServiceInfo{Name: name, Endpoint: endpoint, SOAPActionBase: soapActionBase}
	return c
}

// Lookup returns the registry entry for name
func (c *Client) Lookup(name string) (ServiceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.services[name]
	return info, ok
}

// Services lists registry entries sorted by name
func (c *Client) Services() []ServiceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ServiceInfo, 0, len(c.services))
	for _, info := range c.services {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Authenticated reports whether calls are authorized automatically
func (c *Client) Authenticated() bool {
	return c.auth != nil
}

type callOptions struct {
	failOnError bool
}

// CallOption tunes a single call
type CallOption func(*callOptions)

// FailOnError controls whether service error records fail the call.
// It defaults to true. SOAP faults fail the call regardless.
func FailOnError(fail bool) CallOption {
	return func(o *callOptions) {
		o.failOnError = fail
	}
}

// Call executes req against its service and returns the validated response.
func (c *Client) Call(ctx context.Context, req Request, opts ...CallOption) (*Document, error) {
	o := callOptions{failOnError: true}
	for _, opt := range opts {
		opt(&o)
	}

	serviceName := req.ServiceName()
	operation := req.OperationName()
	log := c.logger.With("service", serviceName).With("operation", operation)
	start := time.Now()

	doc, err := c.call(ctx, log, req, o)
	c.metrics.RecordSOAPCall(serviceName, operation, outcomeOf(err), time.Since(start))
	return doc, err
}

func (c *Client) call(ctx context.Context, log *logging.Logger, req Request, o callOptions) (*Document, error) {
	info, ok := c.Lookup(req.ServiceName())
	if !ok {
		return nil, &ConfigurationError{
			Field:   "service",
			Message: fmt.Sprintf("service %q is not registered", req.ServiceName()),
			Err:     ErrUnregisteredService,
		}
	}

	var secrets []string
	if c.auth != nil {
		log.Debug("service requires authorization")
		creds, err := c.auth.Authenticate(ctx, info.Name)
		if err != nil {
			return nil, err
		}
		req.Authorize(creds)
		secrets = append(secrets, creds.Token, creds.Sign)
	}

	log.Debug("building SOAP payload")
	payload, err := req.Build()
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.OperationName(), err)
	}
	if log.IsDebug() {
		log.Debug("payload: %s", logging.Redact(payload, secrets))
	}

	body, status, err := c.post(ctx, info, req.OperationName(), payload)
	if err != nil {
		return nil, err
	}

	log.Debug("validating response (HTTP %d, %d bytes)", status, len(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &TransportError{Op: "read", Endpoint: info.Endpoint, StatusCode: status, Err: errors.New("empty response body")}
	}

	doc, err := ParseDocument(body)
	if err != nil {
		if status >= 300 {
			return nil, &TransportError{Op: "read", Endpoint: info.Endpoint, StatusCode: status, Err: err}
		}
		return nil, &ProtocolFault{Code: "client", Message: "malformed response", Detail: err.Error()}
	}

	if fault := doc.Fault(); fault != nil {
		log.Warn("SOAP fault: %s", fault.Error())
		return nil, fault
	}

	if records := doc.Errors(); len(records) > 0 {
		if o.failOnError {
			return nil, &ServiceError{Service: info.Name, Operation: req.OperationName(), Errors: records}
		}
		log.Debug("ignoring %d service error records", len(records))
	}

	return doc, nil
}

func (c *Client) post(ctx context.Context, info ServiceInfo, operation, payload string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, info.Endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, 0, &ConfigurationError{Field: "endpoint", Message: fmt.Sprintf("invalid endpoint %q", info.Endpoint), Err: err}
	}
	httpReq.Header.Set("Content-Type", info.ContentType(operation))
	httpReq.Header.Set("SOAPAction", info.Action(operation))
	httpReq.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("calling operation %s on endpoint %s", operation, info.Endpoint)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, &TransportError{Op: "send", Endpoint: info.Endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: "read", Endpoint: info.Endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	return body, resp.StatusCode, nil
}

// CallAs executes req and hands the response to build.
func CallAs[T any](ctx context.Context, c *Client, req Request, build func(*Document) (T, error), opts ...CallOption) (T, error) {
	doc, err := c.Call(ctx, req, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return build(doc)
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		cfgErr   *ConfigurationError
		fault    *ProtocolFault
		svcErr   *ServiceError
		transErr *TransportError
	)
	switch {
	case errors.As(err, &svcErr):
		return metrics.OutcomeServiceError
	case errors.As(err, &fault):
		return metrics.OutcomeFault
	case errors.As(err, &transErr):
		return metrics.OutcomeTransport
	case errors.As(err, &cfgErr):
		return metrics.OutcomeConfiguration
	default:
		return "error"
	}
}
