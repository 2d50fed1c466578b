// Package report renders crawl summaries and crawl history.
//
// Three formats are available:
//   - SimpleWriter: Human-readable text for terminal display
//   - JSONWriter: Structured JSON for tool integration
//   - MarkdownWriter: Markdown for sharing and documentation
//
// The report data itself lives in the model and database packages so that
// new output formats can be added without touching the crawler.
package report
