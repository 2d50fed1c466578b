package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// Built on nao1215/markdown for tables, alerts and mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the crawl summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	if summary == nil {
		return 0, nil
	}

	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl Summary")
	md.PlainText("")

	mode := "save"
	if summary.DryRun {
		mode = "dry run"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + summary.Seed + "`"},
			{"Started", summary.StartedAt.Format(timeLayout)},
			{"Duration", summary.Duration().String()},
			{"Pages Visited", strconv.Itoa(summary.PagesVisited) + " / " + strconv.Itoa(summary.MaxPages)},
			{"Pages Saved", strconv.Itoa(len(summary.Saved))},
			{"Mode", mode},
			{"Status", statusText(summary.Aborted, !summary.FinishedAt.IsZero(), len(summary.Failures))},
		},
	})
	md.PlainText("")
	w.writeAlert(md, summary.Aborted, summary.PagesVisited, len(summary.Failures))

	md.H2("Visited Pages")
	md.PlainText("")
	if len(summary.Visited) == 0 {
		md.PlainText("No pages visited.")
	} else {
		saved := make(map[string]string, len(summary.Saved))
		for _, s := range summary.Saved {
			saved[s.URL] = s.Path
		}
		rows := make([][]string, len(summary.Visited))
		for i, u := range summary.Visited {
			rows[i] = []string{strconv.Itoa(i + 1), u, orDash(saved[u])}
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "URL", "Saved To"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	w.writeFailures(md, summary.Failures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRuns outputs the stored runs as a Markdown table.
func (w *MarkdownWriter) WriteRuns(runs []database.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No crawl runs recorded.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(runs))
		for i, r := range runs {
			rows[i] = []string{
				"`" + r.ID + "`",
				r.Seed,
				r.StartedAt.Format(timeLayout),
				strconv.Itoa(r.PagesVisited) + " / " + strconv.Itoa(r.MaxPages),
				strconv.Itoa(r.FailureCount),
				statusText(r.Aborted, r.Finished(), r.FailureCount),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Run", "Seed", "Started", "Pages", "Failures", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRun outputs one stored run with its pages and failures.
func (w *MarkdownWriter) WriteRun(detail *RunDetail) (int, error) {
	if detail == nil {
		return 0, nil
	}

	r := detail.Run
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl Run " + r.ID)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + r.Seed + "`"},
			{"Started", r.StartedAt.Format(timeLayout)},
			{"Pages Visited", strconv.Itoa(r.PagesVisited) + " / " + strconv.Itoa(r.MaxPages)},
			{"Status", statusText(r.Aborted, r.Finished(), r.FailureCount)},
		},
	})
	md.PlainText("")
	w.writeAlert(md, r.Aborted, r.PagesVisited, r.FailureCount)

	md.H2("Pages")
	md.PlainText("")
	if len(detail.Pages) == 0 {
		md.PlainText("No pages recorded.")
	} else {
		rows := make([][]string, len(detail.Pages))
		for i, p := range detail.Pages {
			rows[i] = []string{
				strconv.Itoa(p.Seq),
				p.URL,
				truncateString(orDash(p.Title), 40),
				orDash(p.Language),
				strconv.Itoa(p.Links),
				strconv.Itoa(p.Images),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "URL", "Title", "Language", "Links", "Images"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	w.writeFailures(md, detail.Failures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WritePageHistory outputs every stored visit of url as a Markdown table.
func (w *MarkdownWriter) WritePageHistory(url string, pages []database.Page) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Page History")
	md.PlainText("")
	md.PlainText("`" + url + "`")
	md.PlainText("")

	if len(pages) == 0 {
		md.PlainText("Never visited.")
	} else {
		rows := make([][]string, len(pages))
		for i, p := range pages {
			rows[i] = []string{
				p.AccessedAt.Format(timeLayout),
				"`" + p.RunID + "`",
				truncateString(orDash(p.Title), 40),
				orDash(p.Language),
				truncateString(orDash(p.ContentHash), 16),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Accessed", "Run", "Title", "Language", "SHA-256"},
			Rows:   rows,
		})
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, aborted bool, visited, failures int) {
	switch {
	case aborted:
		md.Cautionf("The crawl was aborted after %d page(s). Results are partial.", visited)
	case failures > 0:
		md.Warningf("%d page fetch(es) failed. Failed pages were skipped.", failures)
	case visited == 0:
		md.Note("No pages were visited.")
	default:
		md.Tip("All pages were fetched successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, failures []model.Failure) {
	md.H2("Failures")
	md.PlainText("")
	if len(failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failures by Kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range failureKinds {
		n := 0
		for _, f := range failures {
			if f.Kind == kind {
				n++
			}
		}
		if n > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{
			kindLabel(f.Kind),
			f.URL,
			strconv.Itoa(f.Attempt),
			truncateString(f.Message, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Attempt", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}
