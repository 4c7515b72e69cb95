package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TicketTimeLayout formats WSAA ticket timestamps
const TicketTimeLayout = "2006-01-02T15:04:05.000-07:00"

// LoginCmsResponse renders a WSAA loginCms response. The ticket document
// is escaped inside loginCmsReturn the way WSAA sends it.
func LoginCmsResponse(token, sign string, generated, expires time.Time) string {
	ticket := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<loginTicketResponse version="1.0">
    <header>
        <source>CN=test</source>
        <destination>CN=test2</destination>
        <uniqueId>2081446165</uniqueId>
        <generationTime>%s</generationTime>
        <expirationTime>%s</expirationTime>
    </header>
    <credentials>
        <token>%s</token>
        <sign>%s</sign>
    </credentials>
</loginTicketResponse>`,
		generated.Format(TicketTimeLayout), expires.Format(TicketTimeLayout), token, sign)

	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(ticket))

	return SOAPEnvelope(`<loginCmsResponse xmlns="http://wsaa.view.sua.dvadac.desein.afip.gov">` +
		`<loginCmsReturn>` + escaped.String() + `</loginCmsReturn></loginCmsResponse>`)
}

// SOAPEnvelope wraps body in a SOAP 1.1 envelope
func SOAPEnvelope(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soapenv:Body>` + body + `</soapenv:Body></soapenv:Envelope>`
}

// SOAPFault renders a SOAP 1.1 fault response
func SOAPFault(code, message string) string {
	return SOAPEnvelope(`<soapenv:Fault>` +
		`<faultcode xmlns:ns1="http://xml.apache.org/axis/">` + code + `</faultcode>` +
		`<faultstring>` + message + `</faultstring><detail/></soapenv:Fault>`)
}

// StubResponse is what a SOAPStub route answers
type StubResponse struct {
	Status int
	Body   string
	// Delay is slept before answering
	Delay time.Duration
}

// StubRequest is a request received by a SOAPStub
type StubRequest struct {
	Path       string
	SOAPAction string
	Body       string
}

// SOAPStub is an httptest server answering SOAP calls per path.
//
// Example usage:
//
//	stub := NewSOAPStub(t)
//	stub.Handle("/wsaa", func(StubRequest) StubResponse {
//	    return StubResponse{Body: LoginCmsResponse("T1", "S1", now, now.Add(12*time.Hour))}
//	})
//	client.RegisterService("wsaa", stub.URL("/wsaa"), "")
type SOAPStub struct {
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]func(StubRequest) StubResponse
	requests []StubRequest
}

// NewSOAPStub starts a stub that is closed when the test ends.
// Unrouted paths answer 404.
func NewSOAPStub(t testing.TB) *SOAPStub {
	t.Helper()

	s := &SOAPStub{routes: make(map[string]func(StubRequest) StubResponse)}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// Handle routes path to fn
func (s *SOAPStub) Handle(path string, fn func(StubRequest) StubResponse) *SOAPStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = fn
	return s
}

// URL returns the absolute URL of path
func (s *SOAPStub) URL(path string) string {
	return s.server.URL + path
}

// Requests returns the requests received on path, oldest first
func (s *SOAPStub) Requests(path string) []StubRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StubRequest
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Hits counts the requests received on path
func (s *SOAPStub) Hits(path string) int {
	return len(s.Requests(path))
}

// Last returns the latest request received on path
func (s *SOAPStub) Last(path string) (StubRequest, bool) {
	reqs := s.Requests(path)
	if len(reqs) == 0 {
		return StubRequest{}, false
	}
	return reqs[len(reqs)-1], true
}

func (s *SOAPStub) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := StubRequest{
		Path:       r.URL.Path,
		SOAPAction: r.Header.Get("SOAPAction"),
		Body:       string(body),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	resp := fn(req)
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
