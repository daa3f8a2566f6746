// Package feed implements the high-impact calendar pipeline: parsing
// the upstream economic-calendar ICS payloads, selecting high-impact
// events, and serializing the filtered feed for publishing.
package feed

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Document-level constants of the published feed. Calendar clients key
// on these across refreshes, so they are fixed at compile time rather
// than configurable.
const (
	CalendarName  = "High Impact Economic Events"
	ProductID     = "-//impactcal//high-impact-feed//EN"
	FeedTimezone  = "America/Toronto"
	CalendarScale = "GREGORIAN"
	MethodPublish = "PUBLISH"
)

// Document is an ordered sequence of calendar events plus the
// document-level metadata of the calendar that carried them. Instances
// are transient: built fresh from a payload each run and discarded
// after the output is written.
type Document struct {
	Name      string
	ProductID string
	Timezone  string
	Method    string

	Events []Event
}

// Event is the lifted view of a single VEVENT. Summary, Description,
// Location and Categories hold unescaped text (what a calendar client
// would display); StartRaw/EndRaw keep the DTSTART/DTEND values exactly
// as written in the source. The underlying parsed component is retained
// so the published feed re-emits the event verbatim.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Categories  string

	StartRaw string
	EndRaw   string

	// Start/End are best-effort parsed times for logging and the JSON
	// view; they play no part in what gets published.
	Start time.Time
	End   time.Time

	comp *ical.VEvent
}

// propValue returns the value of the named event property. Property
// names are matched case-insensitively: RFC 5545 names carry no case,
// and some producers emit them in lowercase.
func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	for i := range ve.Properties {
		if strings.EqualFold(ve.Properties[i].IANAToken, string(name)) {
			return ve.Properties[i].Value
		}
	}
	return ""
}

// calendarProp returns the value of the named calendar-level property,
// matched case-insensitively.
func calendarProp(cal *ical.Calendar, name string) string {
	for i := range cal.CalendarProperties {
		if strings.EqualFold(cal.CalendarProperties[i].IANAToken, name) {
			return cal.CalendarProperties[i].Value
		}
	}
	return ""
}
