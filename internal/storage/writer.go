package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

const (
	// DefaultRoot is the output root used when none is configured.
	DefaultRoot = "saved_pages"

	// timestampLayout is YYYYMMDD_HHMMSS.
	timestampLayout = "20060102_150405"

	dirPerm  = 0750
	filePerm = 0600
)

// ErrNilRecord is returned by Save when given a nil record.
var ErrNilRecord = errors.New("nil page record")

// Error is a failure to persist a page record.
type Error struct {
	URL  string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persist %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("persist %s to %s: %v", e.URL, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Saver persists page records and reports where each one was written.
type Saver interface {
	Save(rec *model.PageRecord) (string, error)
}

// Writer is the filesystem Saver.
type Writer struct {
	root string
	now  func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock replaces the clock used to name record files.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a Writer rooted at root. An empty root means DefaultRoot.
func NewWriter(root string, opts ...Option) *Writer {
	if root == "" {
		root = DefaultRoot
	}
	w := &Writer{
		root: root,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DirFor returns the directory a record for rawURL is written to.
func (w *Writer) DirFor(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	dir := filepath.Join(w.root, strings.ReplaceAll(u.Host, ".", "_"))
	if u.Path != "" {
		dir = filepath.Join(dir, strings.ReplaceAll(u.Path, "/", "_"))
	}
	return dir, nil
}

// Save writes rec as indented JSON and returns the file path.
// The destination directory is created if it does not exist.
func (w *Writer) Save(rec *model.PageRecord) (string, error) {
	if rec == nil {
		return "", &Error{Err: ErrNilRecord}
	}

	dir, err := w.DirFor(rec.URL)
	if err != nil {
		return "", &Error{URL: rec.URL, Err: err}
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", &Error{URL: rec.URL, Path: dir, Err: err}
	}

	path := filepath.Join(dir, "page_"+w.now().Format(timestampLayout)+".json")

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return "", &Error{URL: rec.URL, Path: path, Err: err}
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		_ = f.Close()
		return "", &Error{URL: rec.URL, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &Error{URL: rec.URL, Path: path, Err: err}
	}
	return path, nil
}
