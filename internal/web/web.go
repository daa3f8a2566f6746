package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"impactcal/internal/config"
	"impactcal/internal/feed"
	appLog "impactcal/internal/log"
)

// Server exposes the published feed over HTTP in serve mode, plus
// health, metrics and a JSON view of the latest run.
type Server struct {
	// current yields the live config snapshot, so a hot-reloaded output
	// path is picked up without a restart.
	current func() *config.Config
	mux     *http.ServeMux

	// Latest run outcome, replaced wholesale after every scheduled run.
	statusMu sync.RWMutex
	status   *RunStatus
}

// RunStatus captures the outcome of the most recent pipeline run.
type RunStatus struct {
	Time   time.Time
	Seen   int
	Events []feed.Event
	Err    string
}

// feedRoute is the stable subscription path. The file on disk may have
// any name; subscribers always use this route.
const feedRoute = "/feed.ics"

// NewServer constructs a new Server. current is consulted on every
// feed request; pass a closure over a static config when there is no
// reload to track.
func NewServer(current func() *config.Config) *Server {
	s := &Server{
		current: current,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetStatus records the outcome of a pipeline run for /api/events.
func (s *Server) SetStatus(st RunStatus) {
	s.statusMu.Lock()
	s.status = &st
	s.statusMu.Unlock()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc(feedRoute, s.handleFeed)

	// The published file's own basename also resolves, so a link to the
	// on-disk artifact keeps working when pasted into a client. The
	// alias is fixed at startup; the stable route tracks later config
	// changes.
	if base := "/" + filepath.Base(s.current().Output); base != feedRoute {
		s.mux.HandleFunc(base, s.handleFeed)
	}

	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleFeed serves the published feed from disk. Disk is the source of
// truth: it survives restarts and is exactly what a one-shot run would
// have produced. The output path is resolved per request so it follows
// config reloads.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	output := s.current().Output
	data, err := os.ReadFile(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "feed not generated yet", http.StatusNotFound)
			return
		}
		appLog.Error("feed read failed", err, "path", output)
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(output)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Seen        int        `json:"seen"`
	Published   int        `json:"published"`
	Error       string     `json:"error,omitempty"`
	Events      []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of a published event.
type eventDTO struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns the events retained by the most recent run. The
// response is built from the run snapshot, not by refetching: the
// scheduler owns upstream traffic.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()

	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "no run completed yet")
		return
	}

	dtos := make([]eventDTO, 0, len(st.Events))
	for _, ev := range st.Events {
		dtos = append(dtos, eventDTO{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.Start,
			End:         ev.End,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		GeneratedAt: st.Time,
		Seen:        st.Seen,
		Published:   len(st.Events),
		Error:       st.Err,
		Events:      dtos,
	})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<h1>%s</h1>
<p>Subscribe to the filtered feed at <a href="%s">%s</a>.</p>
<p>Most calendar clients also accept the webcal scheme: replace
http:// with webcal:// in the URL above.</p>
<p><a href="/api/events">Latest events (JSON)</a> &middot;
<a href="/metrics">Metrics</a> &middot;
<a href="/health">Health</a></p>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The root pattern catches everything the mux did not match.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, indexPage, feed.CalendarName, feed.CalendarName, feedRoute, feedRoute)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
