package model

import "time"

// SearchResult is the outcome of one search invocation, as rendered by the
// report writers.
//
// Design decision: We keep the records exactly as the search returned
// them (error record, diagnostics on the first record, trailing
// diagnostics-only record) and derive the views from them. Writers that
// emit raw JSON must reproduce the engine output byte for byte.
type SearchResult struct {
	// Query is the query as given by the caller, before defaults.
	Query SearchQuery `json:"query"`

	// Records is the search output in discovery order.
	Records []ListingRecord `json:"records"`

	// SearchedAt is when the search finished.
	SearchedAt time.Time `json:"searched_at"`
}

// NewSearchResult creates a SearchResult stamped with the current time.
func NewSearchResult(q SearchQuery, records []ListingRecord) *SearchResult {
	return &SearchResult{
		Query:      q,
		Records:    records,
		SearchedAt: time.Now(),
	}
}

// Failure returns the error record when the search was refused, or nil.
// A failed search always consists of a single error record.
func (r *SearchResult) Failure() *ListingRecord {
	if len(r.Records) > 0 && r.Records[0].HasError() {
		return &r.Records[0]
	}
	return nil
}

// Listings returns the records that carry listing data.
func (r *SearchResult) Listings() []ListingRecord {
	out := make([]ListingRecord, 0, len(r.Records))
	for i := range r.Records {
		rec := &r.Records[i]
		if rec.HasError() || rec.IsDebugOnly() {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// DebugURLs returns the search diagnostics of the run, wherever they are
// attached.
func (r *SearchResult) DebugURLs() (searchURL, proxiedURL string) {
	for i := range r.Records {
		rec := &r.Records[i]
		if rec.DebugURL != "" || rec.DebugProxiedURL != "" {
			return rec.DebugURL, rec.DebugProxiedURL
		}
	}
	return "", ""
}

// ContactCount returns how many listings have a non-empty contact.
func (r *SearchResult) ContactCount() int {
	n := 0
	for i := range r.Records {
		if c := r.Records[i].ContactInfo; c != nil && *c != "" {
			n++
		}
	}
	return n
}

// LocationLabel returns the location of the query for display,
// "anywhere" when none was given.
func (r *SearchResult) LocationLabel() string {
	if r.Query.Location == "" {
		return "anywhere"
	}
	return r.Query.Location
}
