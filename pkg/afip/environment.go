// Package afip wires the authentication service and the SOAP client for
// one AFIP environment.
//
// Every web service AFIP exposes has a homologation (test) and a
// production endpoint. Catalog returns the known services for an
// environment and New registers them on an authenticated client:
//
//	svc, err := afip.New(ctx, afip.Options{
//		Environment: afip.Test,
//		CUIT:        20304050603,
//		Secrets:     provider,
//	})
//	doc, err := svc.Client.Call(ctx, req)
package afip

import (
	"fmt"
	"strings"

	"github.com/systmms/afipws/pkg/soap"
)

// Environment selects homologation or production endpoints
type Environment string

const (
	Test       Environment = "test"
	Production Environment = "production"
)

// ParseEnvironment accepts the names used in configuration files.
// The empty string selects Test.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "test", "testing", "homo", "homologacion", "homologation":
		return Test, nil
	case "prod", "production", "produccion":
		return Production, nil
	default:
		return "", &soap.ConfigurationError{
			Field:   "environment",
			Message: fmt.Sprintf("unknown environment %q (use test or production)", s),
		}
	}
}

// IsProduction reports whether e is Production
func (e Environment) IsProduction() bool {
	return e == Production
}

// Resolve picks the value for the environment
func (e Environment) Resolve(test, prod string) string {
	if e.IsProduction() {
		return prod
	}
	return test
}

func (e Environment) String() string {
	if e == "" {
		return string(Test)
	}
	return string(e)
}
