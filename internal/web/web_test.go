package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactcal/internal/config"
	"impactcal/internal/feed"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output = filepath.Join(t.TempDir(), "high_impact_only.ics")
	return NewServer(func() *config.Config { return cfg }), cfg
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestFeed_NotYetPublished(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/feed.ics")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not generated yet")
}

func TestFeed_ServesPublishedFile(t *testing.T) {
	s, cfg := newTestServer(t)
	payload := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"
	require.NoError(t, os.WriteFile(cfg.Output, []byte(payload), 0o644))

	for _, path := range []string{"/feed.ics", "/high_impact_only.ics"} {
		rr := get(t, s, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, payload, rr.Body.String(), path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/calendar", path)
	}
}

func TestFeed_FollowsReloadedOutputPath(t *testing.T) {
	first := config.DefaultConfig()
	first.Output = filepath.Join(t.TempDir(), "high_impact_only.ics")
	current := first
	s := NewServer(func() *config.Config { return current })

	require.NoError(t, os.WriteFile(first.Output, []byte("BEGIN:VCALENDAR\r\nPRODID:-//one//EN\r\nEND:VCALENDAR\r\n"), 0o644))
	rr := get(t, s, "/feed.ics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "PRODID:-//one//EN")

	// A config reload moves the output path; the stable route must serve
	// the feed published at the new location.
	second := config.DefaultConfig()
	second.Output = filepath.Join(t.TempDir(), "moved.ics")
	require.NoError(t, os.WriteFile(second.Output, []byte("BEGIN:VCALENDAR\r\nPRODID:-//two//EN\r\nEND:VCALENDAR\r\n"), 0o644))
	current = second

	rr = get(t, s, "/feed.ics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "PRODID:-//two//EN")
}

func TestEvents_NoRunYet(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/api/events")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no run completed yet")
}

func TestEvents_AfterRun(t *testing.T) {
	s, _ := newTestServer(t)

	start := time.Date(2026, 1, 5, 13, 30, 0, 0, time.UTC)
	s.SetStatus(RunStatus{
		Time: time.Now(),
		Seen: 3,
		Events: []feed.Event{
			{UID: "ff-1001", Summary: "GDP q/q", Description: "Impact: High, GDP q/q", Location: "CAD", Start: start},
		},
	})

	rr := get(t, s, "/api/events")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Seen      int    `json:"seen"`
		Published int    `json:"published"`
		Events    []struct {
			UID     string `json:"uid"`
			Summary string `json:"summary"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Seen)
	assert.Equal(t, 1, resp.Published)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "ff-1001", resp.Events[0].UID)
	assert.Equal(t, "GDP q/q", resp.Events[0].Summary)
}

func TestEvents_FailedRunIsReported(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetStatus(RunStatus{Time: time.Now(), Err: "fetch thisweek: status 503"})

	rr := get(t, s, "/api/events")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "status 503")
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "/feed.ics")
	assert.Contains(t, rr.Body.String(), feed.CalendarName)
}

func TestIndex_UnknownPathIs404(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(t, s, "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "impactcal_")
}
