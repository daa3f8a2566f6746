package feed

import (
	"strings"

	ical "github.com/arran4/golang-ical"
)

// SerializeError reports an event whose content cannot be represented
// in the output format.
type SerializeError struct {
	UID    string
	Reason string
}

func (e *SerializeError) Error() string {
	return "serialize calendar: event " + e.UID + ": " + e.Reason
}

// Serialize emits doc as an iCalendar payload with CRLF endings and
// folded long lines. Document metadata is written in a fixed order and
// every event component is re-emitted exactly as parsed (gaining a UID
// when the source had none), so serializing an unchanged document is
// byte-stable across runs.
func Serialize(doc *Document) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetVersion("2.0")
	cal.SetProductId(doc.ProductID)
	cal.SetCalscale(CalendarScale)
	cal.SetMethod(ical.Method(doc.Method))
	cal.SetXWRCalName(doc.Name)
	cal.SetXWRTimezone(doc.Timezone)

	for i := range doc.Events {
		ev := &doc.Events[i]
		if ev.comp == nil {
			return nil, &SerializeError{UID: ev.UID, Reason: "no underlying component"}
		}
		if err := checkRepresentable(ev); err != nil {
			return nil, err
		}
		if propValue(ev.comp, ical.ComponentPropertyUniqueId) == "" {
			uid := ev.UID
			if uid == "" {
				uid = SynthesizeUID(*ev)
			}
			ev.comp.SetProperty(ical.ComponentPropertyUniqueId, uid)
		}
		cal.AddVEvent(ev.comp)
	}

	// The library's default line ending follows the host OS; the format
	// wants CRLF everywhere.
	return []byte(cal.Serialize(ical.WithNewLineWindows)), nil
}

// checkRepresentable rejects property values the content-line format
// cannot carry. Newlines in TEXT values are fine (the serializer
// re-escapes them); CR and NUL have no escaped form, and a newline in
// a non-TEXT value would be emitted raw.
func checkRepresentable(ev *Event) error {
	for i := range ev.comp.Properties {
		p := &ev.comp.Properties[i]
		if strings.ContainsAny(p.Value, "\r\x00") {
			return &SerializeError{UID: ev.UID, Reason: "property " + p.IANAToken + " contains a raw control character"}
		}
		if strings.ContainsRune(p.Value, '\n') && p.GetValueType() != ical.ValueDataTypeText {
			return &SerializeError{UID: ev.UID, Reason: "property " + p.IANAToken + " contains a raw newline"}
		}
	}
	return nil
}
