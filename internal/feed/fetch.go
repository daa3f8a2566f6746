package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "impactcal/internal/log"
	"impactcal/internal/metrics"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "impactcal/1.0"
)

// Source identifies one upstream weekly feed.
type Source struct {
	// ID is a short label used in logs ("thisweek", "nextweek").
	ID string
	// URL is the ICS endpoint.
	URL string
	// Required marks a source whose failure aborts the whole run.
	// Optional sources are skipped with a warning; upstream does not
	// always publish later weeks.
	Required bool
}

// FetchError reports a failed retrieval.
type FetchError struct {
	Source string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s (%s)", e.Source, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchResult carries one successfully fetched payload.
type FetchResult struct {
	Source Source
	Body   []byte
}

// Fetcher retrieves the upstream calendar payloads.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher with the default timeout. No retries:
// re-running a failed cycle belongs to the scheduler.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// FetchAll retrieves every source in order. A failing required source
// aborts with *FetchError; failing optional sources are logged and
// skipped. At least one source must produce a payload.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, error) {
	results := make([]FetchResult, 0, len(sources))
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			metrics.FetchFailures.Inc()
			if src.Required {
				return nil, err
			}
			appLog.Warn("optional source unavailable, continuing", "id", src.ID, "err", err)
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, &FetchError{Source: "all", Err: errors.New("no source produced a payload")}
	}
	return results, nil
}

// FetchOne retrieves a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, &FetchError{Source: src.ID, Err: errors.New("source has no URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("fetch start", "id", src.ID, "url", src.URL)
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FetchResult{}, &FetchError{Source: src.ID, URL: src.URL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return FetchResult{}, &FetchError{Source: src.ID, URL: src.URL, Status: resp.StatusCode, Err: errors.New("empty response body")}
	}

	// Upstream serves text/calendar; anything else usually means an
	// error page, which Parse will reject with a pointed message.
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/calendar") {
		appLog.Warn("unexpected content type", "id", src.ID, "content_type", ct)
	}

	appLog.Info("fetch completed", "id", src.ID, "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}
