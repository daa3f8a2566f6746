package feed

import (
	appLog "impactcal/internal/log"
	"impactcal/internal/metrics"
)

// Result carries everything one pipeline pass produces.
type Result struct {
	// Document is the filtered publish document.
	Document *Document
	// Output is the serialized feed, ready to write.
	Output []byte
	// Seen counts events parsed across all input payloads.
	Seen int
}

// Process parses every payload, filters across them and serializes the
// publish feed. It is a pure transformation: the same payloads and
// options always yield the same bytes.
func Process(payloads [][]byte, opts FilterOptions) (*Result, error) {
	docs := make([]*Document, 0, len(payloads))
	seen := 0
	for _, raw := range payloads {
		doc, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		seen += len(doc.Events)
		docs = append(docs, doc)
	}

	out := FilterAll(docs, opts)
	metrics.EventsSeen.Add(float64(seen))
	metrics.EventsPublished.Add(float64(len(out.Events)))
	appLog.Info("events filtered", "seen", seen, "published", len(out.Events), "vip", opts.IncludeVIP)

	data, err := Serialize(out)
	if err != nil {
		return nil, err
	}
	return &Result{Document: out, Output: data, Seen: seen}, nil
}

// Run executes the pipeline over a single raw payload:
// parse, filter, serialize.
func Run(raw []byte, opts FilterOptions) ([]byte, error) {
	return RunAll([][]byte{raw}, opts)
}

// RunAll behaves like Run over several weekly payloads, deduplicating
// events that upstream repeats across weeks.
func RunAll(payloads [][]byte, opts FilterOptions) ([]byte, error) {
	res, err := Process(payloads, opts)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}
