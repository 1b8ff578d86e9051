package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/validate"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
// Search output is the bare record array, exactly as the engine returned it.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. The record field names are fixed by struct tags shared with storage
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSearch outputs the records array.
// A nil record slice is written as an empty array.
func (w *JSONWriter) WriteSearch(result *model.SearchResult) (int, error) {
	records := result.Records
	if records == nil {
		records = []model.ListingRecord{}
	}
	return w.writeJSON(records)
}

// WriteDetail outputs the detail record.
func (w *JSONWriter) WriteDetail(detail *model.DetailRecord) (int, error) {
	return w.writeJSON(detail)
}

// siteMapJSON adds the computed statistics to a SiteMap.
type siteMapJSON struct {
	*model.SiteMap
	Stats    model.SiteMapStats `json:"stats"`
	Duration string             `json:"duration"`
}

// WriteSiteMap outputs the site map with its statistics.
func (w *JSONWriter) WriteSiteMap(sm *model.SiteMap) (int, error) {
	return w.writeJSON(siteMapJSON{
		SiteMap:  sm,
		Stats:    sm.Stats(),
		Duration: sm.Duration().Round(time.Millisecond).String(),
	})
}

// strategyJSON adds the status to a StrategyResult.
type strategyJSON struct {
	validate.StrategyResult
	Status validate.Status `json:"status"`
}

// validationJSON replaces the strategies of a Report with strategyJSON.
type validationJSON struct {
	*validate.Report
	Strategies []strategyJSON `json:"strategies"`
}

// WriteValidation outputs the validation report with a status per strategy.
func (w *JSONWriter) WriteValidation(report *validate.Report) (int, error) {
	strategies := make([]strategyJSON, len(report.Strategies))
	for i, s := range report.Strategies {
		strategies[i] = strategyJSON{StrategyResult: s, Status: s.Status()}
	}
	return w.writeJSON(validationJSON{Report: report, Strategies: strategies})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// SearchEnvelope wraps a search result with version and query metadata.
//
// Design decision: We wrap the records rather than adding fields to
// ListingRecord because the record shape is the engine's contract and
// must stay identical in every output.
type SearchEnvelope struct {
	// Version is the listingscan version that generated this report.
	Version string `json:"version"`

	// Query is the query as given.
	Query model.SearchQuery `json:"query"`

	// SearchedAt is when the search finished.
	SearchedAt time.Time `json:"searched_at"`

	// Records is the engine output.
	Records []model.ListingRecord `json:"records"`
}

// FullJSONWriter outputs search results wrapped in a SearchEnvelope.
// The other report kinds are written as by JSONWriter.
type FullJSONWriter struct {
	*JSONWriter

	// version is the listingscan version string.
	version string
}

// NewFullJSONWriter creates a writer for search results with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// WriteSearch outputs the search result wrapped with metadata.
func (w *FullJSONWriter) WriteSearch(result *model.SearchResult) (int, error) {
	records := result.Records
	if records == nil {
		records = []model.ListingRecord{}
	}
	return w.writeJSON(SearchEnvelope{
		Version:    w.version,
		Query:      result.Query,
		SearchedAt: result.SearchedAt,
		Records:    records,
	})
}
