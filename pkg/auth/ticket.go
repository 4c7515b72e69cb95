package auth

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// TicketTimeLayout is ISO-8601 with milliseconds and offset
const TicketTimeLayout = "2006-01-02T15:04:05.000-07:00"

// LoginTicket is the loginTicketRequest document signed for WSAA.
type LoginTicket struct {
	Source         string
	Destination    string
	Service        string
	UniqueID       int64
	GenerationTime time.Time
	ExpirationTime time.Time
}

// NewLoginTicket dates the ticket an hour back to absorb clock skew and
// makes it expire a day after generation less one minute. UniqueID is the
// current Unix time in seconds.
func NewLoginTicket(source, destination, service string, now time.Time) LoginTicket {
	generated := now.Add(-time.Hour)
	return LoginTicket{
		Source:         source,
		Destination:    destination,
		Service:        service,
		UniqueID:       now.Unix(),
		GenerationTime: generated,
		ExpirationTime: generated.Add(24*time.Hour - time.Minute),
	}
}

// Marshal renders the ticket as a UTF-8 XML document
func (t LoginTicket) Marshal() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("loginTicketRequest")
	root.CreateAttr("version", "1.0")

	header := root.CreateElement("header")
	if t.Source != "" {
		header.CreateElement("source").SetText(t.Source)
	}
	header.CreateElement("destination").SetText(t.Destination)
	header.CreateElement("uniqueId").SetText(strconv.FormatInt(t.UniqueID, 10))
	header.CreateElement("generationTime").SetText(t.GenerationTime.Format(TicketTimeLayout))
	header.CreateElement("expirationTime").SetText(t.ExpirationTime.Format(TicketTimeLayout))

	root.CreateElement("service").SetText(t.Service)

	return doc.WriteToBytes()
}
