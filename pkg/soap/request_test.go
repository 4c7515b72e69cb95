package soap

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsExpiry(t *testing.T) {
	t.Parallel()

	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := Credentials{ExpiresAt: expires.UnixMilli(), IssuedAt: expires.Add(-12 * time.Hour).UnixMilli()}

	assert.False(t, creds.Expired(expires.Add(-time.Millisecond)))
	assert.True(t, creds.Expired(expires), "a credential expiring now is expired")
	assert.True(t, creds.Expired(expires.Add(time.Millisecond)))
	assert.Equal(t, expires, creds.ExpiresAtTime())
	assert.Equal(t, expires.Add(-12*time.Hour), creds.IssuedAtTime())
}

func TestBaseRequestAuthHeader(t *testing.T) {
	t.Parallel()

	req := NewBaseRequest("wsfe", "FEDummy")
	assert.Equal(t, "", req.AuthHeader())
	_, ok := req.Credentials()
	assert.False(t, ok)

	req.Authorize(Credentials{Token: "T1", Sign: "S<1>", CUIT: 20304050603})
	assert.Equal(t,
		"<ar:Auth><ar:Token>T1</ar:Token><ar:Sign>S&lt;1&gt;</ar:Sign><ar:Cuit>20304050603</ar:Cuit></ar:Auth>",
		req.AuthHeader())

	creds, ok := req.Credentials()
	require.True(t, ok)
	assert.Equal(t, int64(20304050603), creds.CUIT)
	assert.Equal(t, "wsfe", req.ServiceName())
	assert.Equal(t, "FEDummy", req.OperationName())
}

func TestBaseRequestAppendAuth(t *testing.T) {
	t.Parallel()

	doc := etree.NewDocument()
	parent := doc.CreateElement("ar:FECompUltimoAutorizado")

	req := NewBaseRequest("wsfe", "FECompUltimoAutorizado")
	req.AppendAuth(parent)
	assert.Empty(t, parent.ChildElements())

	req.Authorize(Credentials{Token: "T1", Sign: "S1", CUIT: 20304050603})
	req.AppendAuth(parent)

	out, err := doc.WriteToString()
	require.NoError(t, err)
	assert.Equal(t,
		"<ar:FECompUltimoAutorizado><ar:Auth><ar:Token>T1</ar:Token><ar:Sign>S1</ar:Sign><ar:Cuit>20304050603</ar:Cuit></ar:Auth></ar:FECompUltimoAutorizado>",
		out)
}

func TestRawRequestBuild(t *testing.T) {
	t.Parallel()

	req := NewRawRequest("wsfe", "FEDummy", "<Body>{{auth}}</Body>")
	out, err := req.Build()
	require.NoError(t, err)
	assert.Equal(t, "<Body></Body>", out)

	req.Authorize(Credentials{Token: "T", Sign: "S", CUIT: 1})
	out, err = req.Build()
	require.NoError(t, err)
	assert.Contains(t, out, "<ar:Token>T</ar:Token>")
}

func TestEnvelope(t *testing.T) {
	t.Parallel()

	env := NewEnvelope(map[string]string{"ar": "http://ar.gov.afip.dif.FEV1/"})
	env.Body.CreateElement("ar:FEDummy")

	out, err := env.String()
	require.NoError(t, err)
	assert.Equal(t,
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ar="http://ar.gov.afip.dif.FEV1/"><soapenv:Header/><soapenv:Body><ar:FEDummy/></soapenv:Body></soapenv:Envelope>`,
		out)
}

func TestServiceInfoAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AFIP", ServiceInfo{}.Action("getPersona"))
	assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FEDummy", ServiceInfo{SOAPActionBase: "http://ar.gov.afip.dif.FEV1/"}.Action("FEDummy"))
	assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FEDummy", ServiceInfo{SOAPActionBase: "http://ar.gov.afip.dif.FEV1"}.Action("FEDummy"))

	assert.Equal(t, "application/soap+xml; charset=utf-8", ServiceInfo{}.ContentType("getPersona"))
	assert.Equal(t,
		`application/soap+xml; charset=utf-8; action="http://ar.gov.afip.dif.FEV1/FEDummy"`,
		ServiceInfo{SOAPActionBase: "http://ar.gov.afip.dif.FEV1/"}.ContentType("FEDummy"))
}
