package soap

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnregisteredService is wrapped by the ConfigurationError returned
// when a request targets a service the client does not know.
var ErrUnregisteredService = errors.New("service not registered")

// ConfigurationError reports a client setup problem detected before any I/O.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure to deliver the request or read the response.
type TransportError struct {
	Op         string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport error during %s %s", e.Op, e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolFault is a SOAP fault, or a response that is not a usable SOAP document.
type ProtocolFault struct {
	Code    string
	Message string
	Detail  string
}

func (e *ProtocolFault) Error() string {
	return fmt.Sprintf("[%s] %s - %s", e.Code, e.Message, e.Detail)
}

// ServiceErrorRecord is one entry of a service's Errors block.
type ServiceErrorRecord struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r ServiceErrorRecord) String() string {
	return fmt.Sprintf("[%d] %s", r.Code, r.Message)
}

// ServiceError carries the error records a service returned in a successful SOAP response.
type ServiceError struct {
	Service   string
	Operation string
	Errors    []ServiceErrorRecord
}

func (e *ServiceError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, rec := range e.Errors {
		parts[i] = rec.String()
	}
	return strings.Join(parts, " | ")
}

// HasCode reports whether any record carries code
func (e *ServiceError) HasCode(code int) bool {
	for _, rec := range e.Errors {
		if rec.Code == code {
			return true
		}
	}
	return false
}

// SigningError reports a failure to load key material or produce the CMS signature.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing error during %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
