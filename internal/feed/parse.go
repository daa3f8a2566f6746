package feed

import (
	"bytes"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "impactcal/internal/log"
)

// ParseError reports a payload that is not a usable calendar document.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse calendar: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse calendar: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a raw ICS payload into a Document.
//
// Tolerated input variations:
//   - LF-only or CR-only line endings
//   - arbitrary property-name casing
//   - events without a UID (identifiers are synthesized on output)
//
// It fails when the payload is empty, has no top-level VCALENDAR block,
// leaves a block unterminated, or contains an event with neither
// summary nor description. All failures are *ParseError.
func Parse(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Reason: "empty payload"}
	}
	if err := checkEnvelope(raw); err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(normalizeNewlines(raw)))
	if err != nil {
		return nil, &ParseError{Reason: "malformed calendar stream", Err: err}
	}

	doc := &Document{
		Name:      calendarProp(cal, "X-WR-CALNAME"),
		ProductID: calendarProp(cal, "PRODID"),
		Timezone:  calendarProp(cal, "X-WR-TIMEZONE"),
		Method:    calendarProp(cal, "METHOD"),
	}

	for _, ve := range cal.Events() {
		ev, err := liftEvent(ve)
		if err != nil {
			return nil, err
		}
		doc.Events = append(doc.Events, ev)
	}

	appLog.Debug("calendar parsed", "name", doc.Name, "events", len(doc.Events))
	return doc, nil
}

// checkEnvelope rejects payloads that are visibly not iCalendar before
// the stream parser runs, so an upstream HTML error page yields a
// pointed message instead of a token error.
func checkEnvelope(raw []byte) error {
	head := raw
	if len(head) > 256 {
		head = head[:256]
	}
	upper := strings.ToUpper(strings.TrimSpace(string(head)))
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return &ParseError{Reason: "payload is HTML, not calendar data"}
	}
	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		return &ParseError{Reason: "missing BEGIN:VCALENDAR"}
	}
	return nil
}

// normalizeNewlines canonicalizes line endings to CRLF so feeds served
// with bare LF (or stray CR) still decode.
func normalizeNewlines(raw []byte) []byte {
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	raw = bytes.ReplaceAll(raw, []byte("\r"), []byte("\n"))
	return bytes.ReplaceAll(raw, []byte("\n"), []byte("\r\n"))
}

func liftEvent(ve *ical.VEvent) (Event, error) {
	// The parser has already applied the format's TEXT unescaping to
	// property values, so these are client-visible strings as stored.
	ev := Event{
		UID:         propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
		Categories:  propValue(ve, ical.ComponentProperty("CATEGORIES")),
		StartRaw:    propValue(ve, ical.ComponentPropertyDtStart),
		EndRaw:      propValue(ve, ical.ComponentPropertyDtEnd),
		comp:        ve,
	}
	if ev.Summary == "" && ev.Description == "" {
		return Event{}, &ParseError{Reason: "event has neither summary nor description"}
	}

	if t, err := ve.GetStartAt(); err == nil {
		ev.Start = t
	}
	if t, err := ve.GetEndAt(); err == nil {
		ev.End = t
	}
	return ev, nil
}
