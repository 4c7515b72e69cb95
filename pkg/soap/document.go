package soap

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Document is a parsed SOAP response, or a scope inside one.
// Tag lookups ignore namespace prefixes and search depth first.
type Document struct {
	doc  *etree.Document
	root *etree.Element
}

// ParseDocument parses a response body.
//
// Services such as WSAA return an XML document escaped inside a text
// node. Such text is parsed and grafted in place of the text, so its
// elements can be found like any other.
func ParseDocument(data []byte) (*Document, error) {
	doc := newReadDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	expandEmbedded(doc.Root())
	return &Document{doc: doc, root: doc.Root()}, nil
}

// newReadDocument accepts any declared charset; AFIP answers in UTF-8
// but some responses still declare ISO-8859-1.
func newReadDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return doc
}

func expandEmbedded(e *etree.Element) {
	children := e.ChildElements()
	if len(children) > 0 {
		for _, child := range children {
			expandEmbedded(child)
		}
		return
	}

	text := strings.TrimSpace(e.Text())
	if !strings.HasPrefix(text, "<") {
		return
	}
	inner := newReadDocument()
	if err := inner.ReadFromString(text); err != nil || inner.Root() == nil {
		return
	}
	e.SetText("")
	e.AddChild(inner.Root().Copy())
}

// Root returns the scope's element
func (d *Document) Root() *etree.Element {
	return d.root
}

// Etree returns the underlying document
func (d *Document) Etree() *etree.Document {
	return d.doc
}

// XML serializes the scope
func (d *Document) XML() (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(d.root.Copy())
	doc.Indent(2)
	return doc.WriteToString()
}

// Find returns the first element whose local name is tag, or nil.
func (d *Document) Find(tag string) *etree.Element {
	return findFirst(d.root, func(e *etree.Element) bool { return e.Tag == tag })
}

// FindAll returns every element whose local name is tag, in document order.
func (d *Document) FindAll(tag string) []*etree.Element {
	var out []*etree.Element
	walk(d.root, func(e *etree.Element) {
		if e.Tag == tag {
			out = append(out, e)
		}
	})
	return out
}

// Select returns a scope for every element named tag
func (d *Document) Select(tag string) []*Document {
	elems := d.FindAll(tag)
	out := make([]*Document, len(elems))
	for i, e := range elems {
		out[i] = &Document{doc: d.doc, root: e}
	}
	return out
}

// Scope returns a scope for the first element named tag, or nil
func (d *Document) Scope(tag string) *Document {
	e := d.Find(tag)
	if e == nil {
		return nil
	}
	return &Document{doc: d.doc, root: e}
}

// Text returns the trimmed text of the first element named tag, or "".
func (d *Document) Text(tag string) string {
	e := d.Find(tag)
	if e == nil {
		return ""
	}
	return strings.TrimSpace(textOf(e))
}

// String is Text but fails when the element is missing or empty
func (d *Document) String(tag string) (string, error) {
	text := d.Text(tag)
	if text == "" {
		return "", fmt.Errorf("unexpected empty element: %s", tag)
	}
	return text, nil
}

// Int parses the element text as an integer
func (d *Document) Int(tag string) (int, error) {
	s, err := d.String(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %s: %w", tag, err)
	}
	return n, nil
}

// Int64 parses the element text as a 64 bit integer
func (d *Document) Int64(tag string) (int64, error) {
	s, err := d.String(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %s: %w", tag, err)
	}
	return n, nil
}

// Float parses the element text as a decimal number
func (d *Document) Float(tag string) (float64, error) {
	s, err := d.String(tag)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %s: %w", tag, err)
	}
	return f, nil
}

// Bool parses AFIP's S/N flags
func (d *Document) Bool(tag string) (bool, error) {
	s, err := d.String(tag)
	if err != nil {
		return false, err
	}
	switch s {
	case "S":
		return true, nil
	case "N":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean in %s: %q", tag, s)
	}
}

// Time parses ISO-8601 date-times with offset and optional fraction
func (d *Document) Time(tag string) (time.Time, error) {
	s, err := d.String(tag)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time in %s: %w", tag, err)
	}
	return t, nil
}

// Millis parses an ISO-8601 date-time into epoch milliseconds
func (d *Document) Millis(tag string) (int64, error) {
	t, err := d.Time(tag)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// Errors returns the service error records found under Errors/Err.
// A record whose Code is not numeric is reported with code 0.
func (d *Document) Errors() []ServiceErrorRecord {
	var records []ServiceErrorRecord
	for _, block := range d.Select("Errors") {
		for _, rec := range block.Select("Err") {
			code, _ := strconv.Atoi(rec.Text("Code"))
			records = append(records, ServiceErrorRecord{
				Code:    code,
				Message: rec.Text("Msg"),
			})
		}
	}
	return records
}

// Fault returns the SOAP fault carried by the document, or nil.
// Both SOAP 1.1 (faultcode/faultstring/detail) and 1.2 (Code/Reason/Detail)
// children are recognized.
func (d *Document) Fault() *ProtocolFault {
	fault := d.Find("Fault")
	if fault == nil {
		return nil
	}
	code := textFold(fault, "faultcode")
	if code == "" {
		code = textFold(fault, "Value")
	}
	message := textFold(fault, "faultstring")
	if message == "" {
		message = textFold(fault, "Text")
	}
	return &ProtocolFault{
		Code:    code,
		Message: message,
		Detail:  textFold(fault, "detail"),
	}
}

func textFold(e *etree.Element, tag string) string {
	found := findFirst(e, func(el *etree.Element) bool { return strings.EqualFold(el.Tag, tag) })
	if found == nil {
		return ""
	}
	return strings.TrimSpace(textOf(found))
}

// textOf concatenates the character data of e and its descendants
func textOf(e *etree.Element) string {
	var b strings.Builder
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(textOf(t)))
		}
	}
	return b.String()
}

func findFirst(e *etree.Element, match func(*etree.Element) bool) *etree.Element {
	if match(e) {
		return e
	}
	for _, child := range e.ChildElements() {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, child := range e.ChildElements() {
		walk(child, fn)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
