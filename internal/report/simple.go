package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing in them are shown.
	showEmpty bool

	// verbose lists every visited URL and saved file.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
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
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSummary outputs the crawl summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	if summary == nil {
		return 0, nil
	}

	var sb strings.Builder
	w.writeBanner(&sb, "crawl summary")

	fmt.Fprintf(&sb, "Seed:           %s\n", summary.Seed)
	fmt.Fprintf(&sb, "Started:        %s\n", summary.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Duration:       %s\n", summary.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages Visited:  %d / %d\n", summary.PagesVisited, summary.MaxPages)
	if summary.DryRun {
		sb.WriteString("Mode:           dry run (nothing saved)\n")
	} else {
		fmt.Fprintf(&sb, "Pages Saved:    %d\n", len(summary.Saved))
	}
	fmt.Fprintf(&sb, "Status:         %s\n\n", statusText(summary.Aborted, !summary.FinishedAt.IsZero(), len(summary.Failures)))

	w.writeVisited(&sb, summary)
	w.writeFailures(&sb, summary.Failures)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeVisited(sb *strings.Builder, summary *model.Summary) {
	if !w.verbose || (len(summary.Visited) == 0 && !w.showEmpty) {
		return
	}
	w.writeSection(sb, "visited pages")
	if len(summary.Visited) == 0 {
		sb.WriteString("  No pages visited\n\n")
		return
	}

	saved := make(map[string]string, len(summary.Saved))
	for _, s := range summary.Saved {
		saved[s.URL] = s.Path
	}
	for i, u := range summary.Visited {
		fmt.Fprintf(sb, "  %3d. %s\n", i+1, u)
		if path, ok := saved[u]; ok {
			fmt.Fprintf(sb, "       -> %s\n", path)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, failures []model.Failure) {
	if len(failures) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "failures")
	if len(failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, kind := range failureKinds {
		n := 0
		for _, f := range failures {
			if f.Kind == kind {
				n++
			}
		}
		if n > 0 || w.showEmpty {
			fmt.Fprintf(sb, "  %-12s %d\n", kindLabel(kind)+":", n)
		}
	}
	sb.WriteString("\n")
	for _, f := range failures {
		fmt.Fprintf(sb, "  [%s] %s (attempt %d)\n", f.Kind, f.URL, f.Attempt)
		fmt.Fprintf(sb, "    %s\n", f.Message)
	}
	sb.WriteString("\n")
}

// WriteRuns outputs the stored runs as a plain table.
func (w *SimpleWriter) WriteRuns(runs []database.Run) (int, error) {
	var sb strings.Builder
	w.writeBanner(&sb, "crawl history")

	if len(runs) == 0 {
		sb.WriteString("No crawl runs recorded.\n\n")
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "%s  %s\n", r.ID, r.StartedAt.Format(timeLayout))
		fmt.Fprintf(&sb, "  Seed:     %s\n", r.Seed)
		fmt.Fprintf(&sb, "  Pages:    %d / %d", r.PagesVisited, r.MaxPages)
		if r.DryRun {
			sb.WriteString(" (dry run)")
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  Failures: %d\n", r.FailureCount)
		fmt.Fprintf(&sb, "  Status:   %s\n\n", statusText(r.Aborted, r.Finished(), r.FailureCount))
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteRun outputs one stored run with its pages and failures.
func (w *SimpleWriter) WriteRun(detail *RunDetail) (int, error) {
	if detail == nil {
		return 0, nil
	}

	var sb strings.Builder
	r := detail.Run
	w.writeBanner(&sb, "crawl run")

	fmt.Fprintf(&sb, "Run:            %s\n", r.ID)
	fmt.Fprintf(&sb, "Seed:           %s\n", r.Seed)
	fmt.Fprintf(&sb, "Started:        %s\n", r.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Pages Visited:  %d / %d\n", r.PagesVisited, r.MaxPages)
	fmt.Fprintf(&sb, "Status:         %s\n\n", statusText(r.Aborted, r.Finished(), r.FailureCount))

	if len(detail.Pages) > 0 || w.showEmpty {
		w.writeSection(&sb, "pages")
		for _, p := range detail.Pages {
			fmt.Fprintf(&sb, "  %3d. %s\n", p.Seq, p.URL)
			if p.Title != "" {
				fmt.Fprintf(&sb, "       Title:    %s\n", p.Title)
			}
			fmt.Fprintf(&sb, "       Language: %s  Links: %d  Images: %d\n", orDash(p.Language), p.Links, p.Images)
			if w.verbose && p.RecordPath != "" {
				fmt.Fprintf(&sb, "       Saved:    %s\n", p.RecordPath)
			}
		}
		sb.WriteString("\n")
	}
	w.writeFailures(&sb, detail.Failures)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WritePageHistory outputs every stored visit of url, newest first.
func (w *SimpleWriter) WritePageHistory(url string, pages []database.Page) (int, error) {
	var sb strings.Builder
	w.writeBanner(&sb, "page history")
	fmt.Fprintf(&sb, "URL: %s\n\n", url)

	if len(pages) == 0 {
		sb.WriteString("Never visited.\n\n")
	}
	for _, p := range pages {
		fmt.Fprintf(&sb, "%s  run %s\n", p.AccessedAt.Format(timeLayout), p.RunID)
		if p.Title != "" {
			fmt.Fprintf(&sb, "  Title:    %s\n", p.Title)
		}
		fmt.Fprintf(&sb, "  Language: %s  Links: %d  Images: %d\n", orDash(p.Language), p.Links, p.Images)
		if p.ContentHash != "" {
			fmt.Fprintf(&sb, "  SHA-256:  %s\n", p.ContentHash)
		}
		sb.WriteString("\n")
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	t := heading(title)
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(t))/2))
	sb.WriteString(t)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(heading(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecrawl\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
