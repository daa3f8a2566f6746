package feed

// FilterOptions tune event selection beyond the fixed high-impact rule.
type FilterOptions struct {
	// IncludeVIP additionally retains events mentioning the fixed VIP
	// keyword list, regardless of their impact rating.
	IncludeVIP bool
}

// Filter selects the high-impact events of doc, preserving their
// relative order, and stamps the fixed publish metadata. A document
// with zero matching events is still a valid, publishable feed.
func Filter(doc *Document, opts FilterOptions) *Document {
	return FilterAll([]*Document{doc}, opts)
}

// FilterAll filters several parsed documents (consecutive weekly
// payloads) into one publish document. Events repeated across weeks are
// deduplicated by identifier; the first occurrence wins. Input
// documents are left untouched apart from identifier assignment on
// retained events.
func FilterAll(docs []*Document, opts FilterOptions) *Document {
	out := &Document{
		Name:      CalendarName,
		ProductID: ProductID,
		Timezone:  FeedTimezone,
		Method:    MethodPublish,
	}

	seen := make(map[string]bool)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, ev := range doc.Events {
			if !retain(ev, opts) {
				continue
			}
			if ev.UID == "" {
				ev.UID = SynthesizeUID(ev)
			}
			if seen[ev.UID] {
				continue
			}
			seen[ev.UID] = true
			out.Events = append(out.Events, ev)
		}
	}
	return out
}

func retain(ev Event, opts FilterOptions) bool {
	if Classify(ev) {
		return true
	}
	return opts.IncludeVIP && IsVIP(ev)
}
