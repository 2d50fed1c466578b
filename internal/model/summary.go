package model

import "time"

// FailureKind classifies why a single page could not be processed.
type FailureKind string

const (
	// FailureFetch is a network error or a non-2xx response.
	FailureFetch FailureKind = "fetch"

	// FailureParse is an HTML document that could not be extracted.
	FailureParse FailureKind = "parse"

	// FailurePersistence is a page record that could not be written.
	// Unlike the other kinds it stops the crawl.
	FailurePersistence FailureKind = "persistence"
)

// Failure records one unsuccessful attempt at a URL.
type Failure struct {
	URL     string      `json:"url"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`

	// Attempt is the 1-based attempt number for URL within the run.
	Attempt int `json:"attempt"`
}

// SavedPage links a visited URL to the file its record was written to.
type SavedPage struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Summary is the outcome of one crawl run.
//
// Visited lists URLs in the order they completed. In dry-run mode Saved is
// always empty while Visited and PagesVisited behave exactly as in a normal run.
type Summary struct {
	Seed         string      `json:"seed"`
	MaxPages     int         `json:"max_pages"`
	DryRun       bool        `json:"dry_run"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
	PagesVisited int         `json:"pages_visited"`
	Visited      []string    `json:"visited"`
	Saved        []SavedPage `json:"saved,omitempty"`
	Failures     []Failure   `json:"failures,omitempty"`
	Aborted      bool        `json:"aborted,omitempty"`
}

// NewSummary creates an empty summary for a crawl of seed.
func NewSummary(seed string, maxPages int, dryRun bool) *Summary {
	return &Summary{
		Seed:     seed,
		MaxPages: maxPages,
		DryRun:   dryRun,
		Visited:  make([]string, 0),
		Saved:    make([]SavedPage, 0),
		Failures: make([]Failure, 0),
	}
}

// Duration returns how long the crawl took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailureCount returns the number of failures of the given kind.
func (s *Summary) FailureCount(kind FailureKind) int {
	n := 0
	for _, f := range s.Failures {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// HasFailures reports whether any page failed.
func (s *Summary) HasFailures() bool {
	return len(s.Failures) > 0
}
