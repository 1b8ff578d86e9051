package report

import (
	"io"
	"unicode/utf8"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/validate"
)

// Writer defines the interface for report output.
// Implementations write search, detail, mapping and validation results in
// various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// WriteSearch outputs the records of one search.
	// Returns the number of bytes written and any error encountered.
	WriteSearch(result *model.SearchResult) (int, error)

	// WriteDetail outputs one detail record.
	WriteDetail(detail *model.DetailRecord) (int, error)

	// WriteSiteMap outputs one mapping run.
	WriteSiteMap(sm *model.SiteMap) (int, error)

	// WriteValidation outputs a selector validation report.
	WriteValidation(report *validate.Report) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// each runs fn on every writer, summing bytes and stopping on the first error.
func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSearch outputs the search result to all configured Writers.
func (m *MultiWriter) WriteSearch(result *model.SearchResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSearch(result) })
}

// WriteDetail outputs the detail record to all configured Writers.
func (m *MultiWriter) WriteDetail(detail *model.DetailRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDetail(detail) })
}

// WriteSiteMap outputs the site map to all configured Writers.
func (m *MultiWriter) WriteSiteMap(sm *model.SiteMap) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSiteMap(sm) })
}

// WriteValidation outputs the validation report to all configured Writers.
func (m *MultiWriter) WriteValidation(report *validate.Report) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteValidation(report) })
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString shortens s to maxLen characters and appends "..." when
// anything was cut. Lengths count runes so multi-byte text is never split.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
