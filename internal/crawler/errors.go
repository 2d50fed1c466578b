package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaxPages is returned by New when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("max pages must be positive")

	// ErrInvalidWorkers is returned by New when the worker count is not positive.
	ErrInvalidWorkers = errors.New("workers must be positive")

	// ErrInvalidSeed describes a seed URL that cannot be crawled.
	// It is recorded as a failure in the summary rather than returned.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrAlreadyRun is returned when Run is called twice on one Controller.
	ErrAlreadyRun = errors.New("controller has already run")
)

// ParseError is an extraction failure for one page.
type ParseError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failure to write a page record. It aborts the crawl.
type PersistenceError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("crawl aborted: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
