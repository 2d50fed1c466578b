package report

import (
	"io"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
type Writer interface {
	// WriteSummary outputs the outcome of one crawl run.
	WriteSummary(summary *model.Summary) (int, error)

	// WriteRuns outputs a list of stored runs, newest first.
	WriteRuns(runs []database.Run) (int, error)

	// WriteRun outputs one stored run with its pages and failures.
	WriteRun(detail *RunDetail) (int, error)

	// WritePageHistory outputs every stored visit of one URL.
	WritePageHistory(url string, pages []database.Page) (int, error)
}

// RunDetail is one stored run together with what it visited.
type RunDetail struct {
	Run      database.Run    `json:"run"`
	Pages    []database.Page `json:"pages"`
	Failures []model.Failure `json:"failures"`
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSummary outputs the summary to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

// WriteRuns outputs the run list to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []database.Run) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteRuns(runs) })
}

// WriteRun outputs the run detail to all configured Writers.
func (m *MultiWriter) WriteRun(detail *RunDetail) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteRun(detail) })
}

// WritePageHistory outputs the page history to all configured Writers.
func (m *MultiWriter) WritePageHistory(url string, pages []database.Page) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WritePageHistory(url, pages) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// failureKinds is the fixed display order for failure counts.
var failureKinds = []model.FailureKind{
	model.FailureFetch,
	model.FailureParse,
	model.FailurePersistence,
}

// kindLabel turns a failure kind into a display label such as "Fetch".
func kindLabel(kind model.FailureKind) string {
	return cases.Title(language.English).String(string(kind))
}

// heading turns a section name into an upper case heading.
func heading(name string) string {
	return cases.Upper(language.English).String(name)
}

// statusText describes how a crawl ended.
func statusText(aborted, finished bool, failures int) string {
	switch {
	case aborted:
		return "Aborted (partial results)"
	case !finished:
		return "Running or interrupted"
	case failures > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

const timeLayout = "2006-01-02 15:04:05 MST"
