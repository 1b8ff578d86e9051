package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/validate"
)

const (
	// DefaultSummaryLimit is how many listings the search summary shows.
	DefaultSummaryLimit = 5

	// summaryDescriptionLen is where listing descriptions are cut.
	summaryDescriptionLen = 120

	// siteName is how the target site is named in summaries.
	siteName = "Locanto"
)

// SimpleWriter outputs human-readable text reports.
// The search summary is the short form meant for chat or terminal use:
// the first few listings with title, age, location and a cut description.
// URLs are never printed in the search summary.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// limit is how many listings the search summary shows.
	limit int

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithLimit sets how many listings the search summary shows.
// Values below 1 show every listing.
func WithLimit(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.limit = n
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		limit:      DefaultSummaryLimit,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSearch outputs the search summary.
//
// A refused search prints "Error: <message>" followed by the search and
// proxied URLs of the run. A search without listings prints a single
// "No ... found" line.
func (w *SimpleWriter) WriteSearch(result *model.SearchResult) (int, error) {
	var sb strings.Builder

	if failure := result.Failure(); failure != nil {
		w.writeFailure(&sb, result, failure)
		return w.output.Write([]byte(sb.String()))
	}

	listings := result.Listings()
	if len(listings) == 0 {
		sb.WriteString(fmt.Sprintf("No %s listings found for '%s' in '%s'.\n",
			siteName, result.Query.Query, result.LocationLabel()))
		if w.verbose {
			w.writeDebugURLs(&sb, result)
		}
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString(fmt.Sprintf("Found %d %s listings for '%s' in '%s':\n\n",
		len(listings), siteName, result.Query.Query, result.LocationLabel()))

	shown := listings
	if w.limit > 0 && len(shown) > w.limit {
		shown = shown[:w.limit]
	}
	for i := range shown {
		w.writeListing(&sb, i+1, &shown[i])
	}

	if w.verbose {
		w.writeDebugURLs(&sb, result)
	}

	return w.output.Write([]byte(sb.String()))
}

// writeFailure writes the error line and the run diagnostics.
func (w *SimpleWriter) writeFailure(sb *strings.Builder, result *model.SearchResult, failure *model.ListingRecord) {
	sb.WriteString("Error: " + failure.Error)
	w.writeDebugURLs(sb, result)
	sb.WriteString("\n")
}

// writeDebugURLs writes the diagnostics lines without a trailing newline
// after the last one.
func (w *SimpleWriter) writeDebugURLs(sb *strings.Builder, result *model.SearchResult) {
	searchURL, proxiedURL := result.DebugURLs()
	if searchURL != "" {
		sb.WriteString("\n[DEBUG] Search URL: " + searchURL)
	}
	if proxiedURL != "" {
		sb.WriteString("\n[DEBUG] Proxied URL: " + proxiedURL)
	}
}

// writeListing writes one numbered summary entry.
// Entries without a title keep their number but print nothing.
func (w *SimpleWriter) writeListing(sb *strings.Builder, n int, l *model.ListingRecord) {
	if l.Title == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("%d. %s\n", n, l.Title))
	if l.Age != "" {
		sb.WriteString(fmt.Sprintf("   Age: %s\n", l.Age))
	}
	if l.Location != "" {
		sb.WriteString(fmt.Sprintf("   Location: %s\n", l.Location))
	}
	if l.Description != "" {
		sb.WriteString(fmt.Sprintf("   Description: %s\n", truncateString(l.Description, summaryDescriptionLen)))
	}
	if w.verbose && l.ContactInfo != nil && *l.ContactInfo != "" {
		sb.WriteString(fmt.Sprintf("   Contact: %s\n", *l.ContactInfo))
	}
	sb.WriteString("\n")
}

// WriteDetail outputs one detail record as labelled lines.
func (w *SimpleWriter) WriteDetail(d *model.DetailRecord) (int, error) {
	var sb strings.Builder

	if d.HasError() {
		sb.WriteString("Error: " + d.Error + "\n")
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString(orDash(d.Title) + "\n\n")

	fields := []struct {
		label string
		value string
	}{
		{"Ad ID", d.AdID},
		{"Price", d.Price},
		{"Location", d.Location},
		{"Age", d.Age},
		{"Posted", d.DatePosted},
		{"Contact", d.ContactInfo},
	}
	for _, f := range fields {
		if f.value != "" {
			sb.WriteString(fmt.Sprintf("%-10s %s\n", f.label+":", f.value))
		}
	}
	if len(d.Images) > 0 {
		sb.WriteString(fmt.Sprintf("%-10s %d\n", "Images:", len(d.Images)))
		if w.verbose {
			for _, img := range d.Images {
				sb.WriteString("  - " + img + "\n")
			}
		}
	}
	if d.Description != "" {
		sb.WriteString("\n" + d.Description + "\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteSiteMap outputs the run statistics and the visited nodes as an
// indented tree in visit order.
func (w *SimpleWriter) WriteSiteMap(sm *model.SiteMap) (int, error) {
	var sb strings.Builder
	stats := sm.Stats()

	writeBanner(&sb, "SITE MAP")
	sb.WriteString(fmt.Sprintf("Seed:       %s\n", sm.Seed))
	sb.WriteString(fmt.Sprintf("Max Depth:  %d\n", sm.MaxDepth))
	sb.WriteString(fmt.Sprintf("Visited:    %d (%d failed)\n", stats.Visited, stats.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:    %d\n", sm.Skipped))
	sb.WriteString(fmt.Sprintf("Listings:   %d\n", stats.Listings))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", sm.Duration().Round(time.Millisecond)))
	if sm.Truncated {
		sb.WriteString("Status:     TRUNCATED (node limit reached)\n")
	}
	sb.WriteString("\n")

	writeSection(&sb, "NODES")
	for i := range sm.Nodes {
		n := &sm.Nodes[i]
		indent := strings.Repeat("  ", n.Depth)
		status := fmt.Sprintf("%d listings", n.Listings)
		switch {
		case n.Block != "":
			status = "[" + n.Block.String() + "]"
		case n.Error != "":
			status = "[error: " + n.Error + "]"
		}
		sb.WriteString(fmt.Sprintf("%s[%d] %s (%s)\n", indent, n.Depth, n.URL, status))
		if w.verbose && n.SavedAs != "" {
			sb.WriteString(fmt.Sprintf("%s    saved: %s\n", indent, n.SavedAs))
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteValidation outputs the strategy statuses, the field coverage and
// the files with missing detail fields.
func (w *SimpleWriter) WriteValidation(report *validate.Report) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SELECTOR VALIDATION")
	sb.WriteString(fmt.Sprintf("Directory:  %s\n", report.Dir))
	sb.WriteString(fmt.Sprintf("Files:      %d\n", len(report.Files)))
	sb.WriteString(fmt.Sprintf("Containers: %d\n\n", report.Containers))

	writeSection(&sb, "STRATEGIES")
	for _, s := range report.Strategies {
		if !w.verbose && s.Status() == validate.StatusAlways {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-22s %-40s %s\n",
			s.Scope+"."+s.Field, truncateString(s.Strategy, 37), s.Label()))
	}
	sb.WriteString(fmt.Sprintf("\n  ALWAYS: %d  SOMETIMES: %d  NEVER: %d\n\n",
		len(report.ByStatus(validate.StatusAlways)),
		len(report.ByStatus(validate.StatusSometimes)),
		len(report.ByStatus(validate.StatusNever))))

	if len(report.Coverage) > 0 {
		writeSection(&sb, "FIELD COVERAGE")
		for _, c := range report.Coverage {
			sb.WriteString(fmt.Sprintf("  %-14s %d/%d (%.0f%%)\n", c.Field, c.Found, c.Containers, c.Ratio()*100))
		}
		sb.WriteString("\n")
	}

	if overrides := report.SuggestedOverrides(); len(overrides) > 0 {
		writeSection(&sb, "SUGGESTED SELECTORS")
		for _, sg := range report.Suggestions {
			for _, c := range sg.Candidates {
				sb.WriteString(fmt.Sprintf("  %-14s %-40s %d/%d\n",
					sg.Field, truncateString(c.Strategy, 37), c.Containers, sg.Unresolved))
			}
		}
		sb.WriteString("\n")
	}

	var problems []validate.FileReport
	for _, f := range report.Files {
		if f.Error != "" || len(f.Missing) > 0 {
			problems = append(problems, f)
		}
	}
	if len(problems) > 0 {
		writeSection(&sb, "FILES")
		for _, f := range problems {
			if f.Error != "" {
				sb.WriteString(fmt.Sprintf("  [!] %s: %s\n", f.File, f.Error))
				continue
			}
			sb.WriteString(fmt.Sprintf("  [-] %s: missing %s\n", f.File, strings.Join(f.Missing, ", ")))
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// writeBanner writes a title framed by "=" rules.
func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeSection writes a section title framed by "-" rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
