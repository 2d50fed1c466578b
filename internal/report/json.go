package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	indentPrefix string
	indentString string

	// version, when set, wraps summaries in a JSONReport envelope.
	version string
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

// WithPrettyPrint enables pretty-printed JSON with two space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps summaries in a JSONReport carrying the tool version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
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

// JSONReport wraps a summary with the version of the tool that produced it.
type JSONReport struct {
	Version string         `json:"version"`
	Summary *model.Summary `json:"summary"`
}

// WriteSummary outputs the crawl summary in JSON format.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	if w.version != "" {
		return w.writeJSON(&JSONReport{Version: w.version, Summary: summary})
	}
	return w.writeJSON(summary)
}

// WriteRuns outputs the run list as a JSON array.
func (w *JSONWriter) WriteRuns(runs []database.Run) (int, error) {
	if runs == nil {
		runs = []database.Run{}
	}
	return w.writeJSON(runs)
}

// WriteRun outputs one stored run in JSON format.
func (w *JSONWriter) WriteRun(detail *RunDetail) (int, error) {
	return w.writeJSON(detail)
}

// PageHistory is the JSON shape of WritePageHistory.
type PageHistory struct {
	URL    string          `json:"url"`
	Visits []database.Page `json:"visits"`
}

// WritePageHistory outputs every stored visit of url in JSON format.
func (w *JSONWriter) WritePageHistory(url string, pages []database.Page) (int, error) {
	if pages == nil {
		pages = []database.Page{}
	}
	return w.writeJSON(&PageHistory{URL: url, Visits: pages})
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

	// Trailing newline for terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
