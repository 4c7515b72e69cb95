package soap

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Credentials authorize calls to a single service. WSAA issues them for
// about 12 hours. IssuedAt and ExpiresAt are epoch milliseconds (UTC).
type Credentials struct {
	ServiceName string `json:"service_name"`
	Token       string `json:"token"`
	Sign        string `json:"sign"`
	CUIT        int64  `json:"cuit"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Expired reports whether ExpiresAt is at or before now
func (c Credentials) Expired(now time.Time) bool {
	return now.UnixMilli() >= c.ExpiresAt
}

// ExpiresAtTime returns ExpiresAt as a time
func (c Credentials) ExpiresAtTime() time.Time {
	return time.UnixMilli(c.ExpiresAt).UTC()
}

// IssuedAtTime returns IssuedAt as a time
func (c Credentials) IssuedAtTime() time.Time {
	return time.UnixMilli(c.IssuedAt).UTC()
}

// Request is one SOAP operation call.
//
// Authorize is invoked by the Client before Build when the client is
// authenticated; Build must then include the authorization block.
type Request interface {
	OperationName() string
	ServiceName() string
	Build() (string, error)
	Authorize(credentials Credentials)
}

// BaseRequest implements the bookkeeping half of Request. Embed it and
// provide Build.
type BaseRequest struct {
	Operation   string
	Service     string
	credentials *Credentials
}

// NewBaseRequest returns a BaseRequest for operation on service
func NewBaseRequest(service, operation string) BaseRequest {
	return BaseRequest{Operation: operation, Service: service}
}

func (r *BaseRequest) OperationName() string {
	return r.Operation
}

func (r *BaseRequest) ServiceName() string {
	return r.Service
}

// Authorize stores credentials for the authorization block
func (r *BaseRequest) Authorize(credentials Credentials) {
	c := credentials
	r.credentials = &c
}

// Credentials returns the stored credentials, if any
func (r *BaseRequest) Credentials() (Credentials, bool) {
	if r.credentials == nil {
		return Credentials{}, false
	}
	return *r.credentials, true
}

// AuthHeader renders the ar:Auth block, or "" when the request is not authorized.
func (r *BaseRequest) AuthHeader() string {
	if r.credentials == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ar:Auth>")
	b.WriteString("<ar:Token>")
	escape(&b, r.credentials.Token)
	b.WriteString("</ar:Token>")
	b.WriteString("<ar:Sign>")
	escape(&b, r.credentials.Sign)
	b.WriteString("</ar:Sign>")
	b.WriteString("<ar:Cuit>")
	b.WriteString(strconv.FormatInt(r.credentials.CUIT, 10))
	b.WriteString("</ar:Cuit>")
	b.WriteString("</ar:Auth>")
	return b.String()
}

// AppendAuth adds the ar:Auth element under parent. It adds nothing when
// the request is not authorized.
func (r *BaseRequest) AppendAuth(parent *etree.Element) {
	if r.credentials == nil {
		return
	}
	auth := parent.CreateElement("ar:Auth")
	auth.CreateElement("ar:Token").SetText(r.credentials.Token)
	auth.CreateElement("ar:Sign").SetText(r.credentials.Sign)
	auth.CreateElement("ar:Cuit").SetText(strconv.FormatInt(r.credentials.CUIT, 10))
}

func escape(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

// AuthPlaceholder is replaced by the authorization block in RawRequest envelopes
const AuthPlaceholder = "{{auth}}"

// RawRequest sends a caller-provided envelope. Occurrences of
// AuthPlaceholder are replaced with the authorization block.
type RawRequest struct {
	BaseRequest
	Envelope string
}

// NewRawRequest creates a RawRequest
func NewRawRequest(service, operation, envelope string) *RawRequest {
	return &RawRequest{BaseRequest: NewBaseRequest(service, operation), Envelope: envelope}
}

func (r *RawRequest) Build() (string, error) {
	return strings.ReplaceAll(r.Envelope, AuthPlaceholder, r.AuthHeader()), nil
}
