package soap

import (
	"github.com/beevik/etree"
)

// EnvelopeNS is the SOAP 1.1 envelope namespace
const EnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

// Envelope builds a soapenv:Envelope with an empty header and a body.
type Envelope struct {
	doc    *etree.Document
	Header *etree.Element
	Body   *etree.Element
}

// NewEnvelope creates an envelope declaring the soapenv prefix plus the
// given service namespaces (prefix to URI).
func NewEnvelope(namespaces map[string]string) *Envelope {
	doc := etree.NewDocument()
	root := doc.CreateElement("soapenv:Envelope")
	root.CreateAttr("xmlns:soapenv", EnvelopeNS)
	for _, prefix := range sortedKeys(namespaces) {
		root.CreateAttr("xmlns:"+prefix, namespaces[prefix])
	}
	return &Envelope{
		doc:    doc,
		Header: root.CreateElement("soapenv:Header"),
		Body:   root.CreateElement("soapenv:Body"),
	}
}

// String serializes the envelope without an XML declaration
func (e *Envelope) String() (string, error) {
	return e.doc.WriteToString()
}
