package auth

import (
	"fmt"

	"github.com/systmms/afipws/pkg/soap"
)

// WSAA constants
const (
	DefaultServiceName = "wsaa"
	LoginOperation     = "loginCms"
	Namespace          = "http://wsaa.view.sua.dvadac.desein.afip.gov"

	TestEndpoint       = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	ProductionEndpoint = "https://wsaa.afip.gov.ar/ws/services/LoginCms"

	TestDN       = "cn=wsaahomo,o=afip,c=ar,serialNumber=CUIT 33693450239"
	ProductionDN = "cn=wsaa,o=afip,c=ar,serialNumber=CUIT 33693450239"
)

// Config describes the WSAA instance and the taxpayer logging in.
type Config struct {
	// ServiceName registers the WSAA endpoint on the login client.
	ServiceName string
	// CUIT is copied into every issued Credentials.
	CUIT int64
	// DN is the destination of login tickets.
	DN       string
	Endpoint string
}

// NewConfig returns the homologation or production WSAA settings.
func NewConfig(production bool, cuit int64) Config {
	cfg := Config{
		ServiceName: DefaultServiceName,
		CUIT:        cuit,
		DN:          TestDN,
		Endpoint:    TestEndpoint,
	}
	if production {
		cfg.DN = ProductionDN
		cfg.Endpoint = ProductionEndpoint
	}
	return cfg
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	return c
}

// Validate checks the fields a login needs
func (c Config) Validate() error {
	if c.CUIT <= 0 {
		return &soap.ConfigurationError{Field: "cuit", Message: fmt.Sprintf("invalid CUIT %d", c.CUIT)}
	}
	if c.DN == "" {
		return &soap.ConfigurationError{Field: "dn", Message: "destination DN is required"}
	}
	return nil
}
