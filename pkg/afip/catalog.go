package afip

import (
	"github.com/systmms/afipws/pkg/auth"
)

// WSAA service names of the supported web services
const (
	ServiceWSAA     = auth.DefaultServiceName
	ServiceWSFE     = "wsfe"
	ServiceWSFEX    = "wsfex"
	ServicePadronA4 = "ws_sr_padron_a4"
)

// ServiceConfig is one catalog entry. Name doubles as the service id
// requested from WSAA.
type ServiceConfig struct {
	Name           string `yaml:"name" json:"name"`
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
	SOAPActionBase string `yaml:"soap_action_base,omitempty" json:"soap_action_base,omitempty"`
}

// WSAA is the authentication service
func WSAA(env Environment) ServiceConfig {
	return ServiceConfig{
		Name:     ServiceWSAA,
		Endpoint: env.Resolve(auth.TestEndpoint, auth.ProductionEndpoint),
	}
}

// WSFE is the domestic electronic invoicing service (wsfev1)
func WSFE(env Environment) ServiceConfig {
	return ServiceConfig{
		Name: ServiceWSFE,
		Endpoint: env.Resolve(
			"https://wswhomo.afip.gov.ar/wsfev1/service.asmx",
			"https://servicios1.afip.gov.ar/wsfev1/service.asmx"),
		SOAPActionBase: "http://ar.gov.afip.dif.FEV1/",
	}
}

// WSFEX is the export invoicing service (wsfexv1)
func WSFEX(env Environment) ServiceConfig {
	return ServiceConfig{
		Name: ServiceWSFEX,
		Endpoint: env.Resolve(
			"https://wswhomo.afip.gov.ar/wsfexv1/service.asmx",
			"https://servicios1.afip.gov.ar/wsfexv1/service.asmx"),
		SOAPActionBase: "http://ar.gov.afip.dif.fexv1/",
	}
}

// PadronA4 is the taxpayer registry lookup, scope 4
func PadronA4(env Environment) ServiceConfig {
	return ServiceConfig{
		Name: ServicePadronA4,
		Endpoint: env.Resolve(
			"https://awshomo.afip.gov.ar/sr-padron/webservices/personaServiceA4",
			"https://aws.afip.gov.ar/sr-padron/webservices/personaServiceA4"),
	}
}

// Catalog returns every known service, WSAA first
func Catalog(env Environment) []ServiceConfig {
	return []ServiceConfig{
		WSAA(env),
		WSFE(env),
		WSFEX(env),
		PadronA4(env),
	}
}
