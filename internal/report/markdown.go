package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/validate"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, in particular
// selector validation results attached to layout-change issues.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSearch outputs the listings as a table.
func (w *MarkdownWriter) WriteSearch(result *model.SearchResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(siteName + " Search")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Query", "`" + cell(result.Query.Query) + "`"},
			{"Location", cell(result.LocationLabel())},
			{"Searched", result.SearchedAt.Format("2006-01-02 15:04:05 MST")},
			{"Listings", strconv.Itoa(len(result.Listings()))},
			{"With Contact", strconv.Itoa(result.ContactCount())},
		},
	})
	md.PlainText("")

	if failure := result.Failure(); failure != nil {
		md.Cautionf("Search failed: %s", failure.Error)
		md.PlainText("")
		w.writeDebugURLs(md, result)
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	listings := result.Listings()
	if len(listings) == 0 {
		md.Note("No listings found.")
		md.PlainText("")
		w.writeDebugURLs(md, result)
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	md.H2("Listings")
	md.PlainText("")

	rows := make([][]string, len(listings))
	for i := range listings {
		l := &listings[i]
		contact := ""
		if l.ContactInfo != nil {
			contact = *l.ContactInfo
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			cell(orDash(l.Title)),
			cell(orDash(l.Age)),
			cell(orDash(l.Location)),
			cell(orDash(contact)),
			cell(orDash(truncateString(l.Description, 60))),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Title", "Age", "Location", "Contact", "Description"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeDebugURLs(md, result)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeDebugURLs writes the run diagnostics as a bullet list.
func (w *MarkdownWriter) writeDebugURLs(md *markdown.Markdown, result *model.SearchResult) {
	searchURL, proxiedURL := result.DebugURLs()
	if searchURL == "" && proxiedURL == "" {
		return
	}
	md.H2("Diagnostics")
	md.PlainText("")
	md.BulletList(
		"Search URL: `"+orDash(searchURL)+"`",
		"Proxied URL: `"+orDash(proxiedURL)+"`",
	)
	md.PlainText("")
}

// WriteDetail outputs one detail record.
func (w *MarkdownWriter) WriteDetail(d *model.DetailRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(orDash(d.Title))
	md.PlainText("")

	if d.HasError() {
		md.Cautionf("%s", d.Error)
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Ad ID", cell(orDash(d.AdID))},
			{"Price", cell(orDash(d.Price))},
			{"Location", cell(orDash(d.Location))},
			{"Age", cell(orDash(d.Age))},
			{"Posted", cell(orDash(d.DatePosted))},
			{"Contact", cell(orDash(d.ContactInfo))},
			{"Images", strconv.Itoa(len(d.Images))},
		},
	})
	md.PlainText("")

	if d.Description != "" {
		md.H2("Description")
		md.PlainText("")
		md.PlainText(d.Description)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteSiteMap outputs the run statistics and the visited nodes.
func (w *MarkdownWriter) WriteSiteMap(sm *model.SiteMap) (int, error) {
	md := markdown.NewMarkdown(w.output)
	stats := sm.Stats()

	md.H1("Site Map")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + cell(sm.Seed) + "`"},
			{"Max Depth", strconv.Itoa(sm.MaxDepth)},
			{"Visited", strconv.Itoa(stats.Visited)},
			{"Failed", strconv.Itoa(stats.Failed)},
			{"Skipped", strconv.Itoa(sm.Skipped)},
			{"Listings", strconv.Itoa(stats.Listings)},
			{"Duration", sm.Duration().Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	switch {
	case stats.Failed > 0:
		md.Warningf("%d of %d node(s) failed to load or were blocked.", stats.Failed, stats.Visited)
	case sm.Truncated:
		md.Importantf("The run stopped at the node limit after %d node(s).", stats.Visited)
	default:
		md.Tip("Every visited node loaded.")
	}
	md.PlainText("")

	md.H2("Nodes")
	md.PlainText("")

	rows := make([][]string, len(sm.Nodes))
	for i := range sm.Nodes {
		n := &sm.Nodes[i]
		status := "ok"
		switch {
		case n.Block != "":
			status = n.Block.String()
		case n.Error != "":
			status = "error: " + truncateString(n.Error, 40)
		}
		rows[i] = []string{
			strconv.Itoa(n.Depth),
			"`" + cell(n.URL) + "`",
			strconv.Itoa(n.Listings),
			strconv.Itoa(len(n.Links)),
			cell(status),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Listings", "Links", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteValidation outputs strategy statuses, field coverage and the files
// with missing detail fields.
func (w *MarkdownWriter) WriteValidation(report *validate.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Selector Validation")
	md.PlainText("")

	always := len(report.ByStatus(validate.StatusAlways))
	sometimes := len(report.ByStatus(validate.StatusSometimes))
	never := len(report.ByStatus(validate.StatusNever))

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Directory", "`" + cell(report.Dir) + "`"},
			{"Files", strconv.Itoa(len(report.Files))},
			{"Containers", strconv.Itoa(report.Containers)},
		},
	})
	md.PlainText("")

	if len(report.Strategies) > 0 {
		w.writePieChart(md, always, sometimes, never)
	}

	switch {
	case never > 0:
		md.Warningf("%d strategy(ies) never matched. The site layout may have changed.", never)
	case sometimes > 0:
		md.Note("Some strategies only matched part of the pages.")
	default:
		md.Tip("Every strategy matched on every page.")
	}
	md.PlainText("")

	md.H2("Strategies")
	md.PlainText("")
	rows := make([][]string, len(report.Strategies))
	for i, s := range report.Strategies {
		rows[i] = []string{
			s.Scope,
			s.Field,
			"`" + cell(s.Strategy) + "`",
			s.Label(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Scope", "Field", "Strategy", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Coverage) > 0 {
		md.H2("Field Coverage")
		md.PlainText("")
		rows := make([][]string, len(report.Coverage))
		for i, c := range report.Coverage {
			rows[i] = []string{
				c.Field,
				fmt.Sprintf("%d/%d", c.Found, c.Containers),
				fmt.Sprintf("%.0f%%", c.Ratio()*100),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Field", "Found", "Ratio"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	var suggested [][]string
	for _, sg := range report.Suggestions {
		for _, c := range sg.Candidates {
			suggested = append(suggested, []string{
				sg.Field,
				"`" + cell(c.Strategy) + "`",
				fmt.Sprintf("%d/%d", c.Containers, sg.Unresolved),
			})
		}
	}
	if len(suggested) > 0 {
		md.H2("Suggested Selectors")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Field", "Candidate", "Unresolved Containers"},
			Rows:   suggested,
		})
		md.PlainText("")
	}

	var missing []string
	for _, f := range report.Files {
		switch {
		case f.Error != "":
			missing = append(missing, fmt.Sprintf("`%s`: %s", f.File, f.Error))
		case len(f.Missing) > 0:
			missing = append(missing, fmt.Sprintf("`%s`: missing %s", f.File, strings.Join(f.Missing, ", ")))
		}
	}
	if len(missing) > 0 {
		md.H2("Files")
		md.PlainText("")
		md.BulletList(missing...)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of the strategy statuses.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, always, sometimes, never int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Strategy Status Distribution"),
		piechart.WithShowData(true),
	)

	if always > 0 {
		chart.LabelAndIntValue("Always", uint64(always))
	}
	if sometimes > 0 {
		chart.LabelAndIntValue("Sometimes", uint64(sometimes))
	}
	if never > 0 {
		chart.LabelAndIntValue("Never", uint64(never))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by listingscan*")
}

// cell makes s safe for a table cell: pipes are escaped and line breaks
// collapse to spaces.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
