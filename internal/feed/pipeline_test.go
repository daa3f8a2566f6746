package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietWeek has no high-impact events at all.
const quietWeek = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Forex Factory//Calendar//EN
BEGIN:VEVENT
UID:ff-2001
SUMMARY:PMI m/m
DESCRIPTION:Impact: Low\, PMI
DTSTART:20260112T133000Z
END:VEVENT
BEGIN:VEVENT
UID:ff-2002
SUMMARY:Trade Balance
DESCRIPTION:Impact: Medium\, Trade Balance
DTSTART:20260113T133000Z
END:VEVENT
END:VCALENDAR
`

// nextWeek repeats an event from sampleWeek and adds a new one.
const nextWeek = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Forex Factory//Calendar//EN
BEGIN:VEVENT
UID:ff-1001
SUMMARY:GDP q/q
DESCRIPTION:Impact: High\, GDP q/q
DTSTART:20260105T133000Z
END:VEVENT
BEGIN:VEVENT
UID:ff-3001
SUMMARY:FOMC Statement
DESCRIPTION:Impact: High\, FOMC Statement
DTSTART:20260114T190000Z
END:VEVENT
END:VCALENDAR
`

func TestRun_SampleWeek(t *testing.T) {
	out, err := Run([]byte(sampleWeek), FilterOptions{})
	require.NoError(t, err)
	text := string(out)

	assert.Equal(t, 2, strings.Count(text, "BEGIN:VEVENT"))
	assert.Contains(t, text, "SUMMARY:GDP q/q")
	assert.Contains(t, text, "Employment Change")
	assert.NotContains(t, text, "Retail Sales")

	// Source order is preserved.
	assert.Less(t, strings.Index(text, "SUMMARY:GDP q/q"), strings.Index(text, "Employment Change"))
}

func TestRun_NoHighImpactEvents(t *testing.T) {
	out, err := Run([]byte(quietWeek), FilterOptions{})
	require.NoError(t, err)
	text := string(out)

	assert.Zero(t, strings.Count(text, "BEGIN:VEVENT"))
	assert.Contains(t, text, "X-WR-CALNAME:High Impact Economic Events")
	assert.True(t, strings.HasSuffix(text, "END:VCALENDAR\r\n"))
}

func TestRun_Deterministic(t *testing.T) {
	a, err := Run([]byte(sampleWeek), FilterOptions{})
	require.NoError(t, err)
	b, err := Run([]byte(sampleWeek), FilterOptions{})
	require.NoError(t, err)

	// Byte-for-byte equal, including the synthesized identifier for the
	// UID-less event.
	assert.Equal(t, string(a), string(b))
}

func TestRun_RoundTrip(t *testing.T) {
	once, err := Run([]byte(sampleWeek), FilterOptions{})
	require.NoError(t, err)
	twice, err := Run(once, FilterOptions{})
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestRun_ParseFailurePropagates(t *testing.T) {
	_, err := Run([]byte("<html><body>company firewall</body></html>"), FilterOptions{})
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestRunAll_MergesWeeks(t *testing.T) {
	out, err := RunAll([][]byte{[]byte(sampleWeek), []byte(nextWeek)}, FilterOptions{})
	require.NoError(t, err)
	text := string(out)

	// ff-1001 appears in both weeks but is published once; the quiet
	// retail event is still dropped.
	assert.Equal(t, 3, strings.Count(text, "BEGIN:VEVENT"))
	assert.Equal(t, 1, strings.Count(text, "UID:ff-1001"))
	assert.Contains(t, text, "SUMMARY:FOMC Statement")
	assert.NotContains(t, text, "Retail Sales")
}

func TestRunAll_VIPOptIn(t *testing.T) {
	const vipWeek = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Forex Factory//Calendar//EN
BEGIN:VEVENT
UID:ff-4001
SUMMARY:FOMC Member Speaks
DESCRIPTION:Impact: Medium\, FOMC speech
DTSTART:20260115T150000Z
END:VEVENT
END:VCALENDAR
`
	quiet, err := RunAll([][]byte{[]byte(vipWeek)}, FilterOptions{})
	require.NoError(t, err)
	assert.Zero(t, strings.Count(string(quiet), "BEGIN:VEVENT"))

	vip, err := RunAll([][]byte{[]byte(vipWeek)}, FilterOptions{IncludeVIP: true})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(vip), "BEGIN:VEVENT"))
	assert.Contains(t, string(vip), "UID:ff-4001")
}
