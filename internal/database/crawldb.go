package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// FileName is the name of the index database inside its directory.
const FileName = "sitecrawl.db"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB is the SQLite crawl index.
// It is safe for concurrent use; writes are serialized by a single connection.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the index in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		max_pages INTEGER NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		language TEXT,
		content_hash TEXT,
		record_path TEXT,
		links INTEGER NOT NULL DEFAULT 0,
		images INTEGER NOT NULL DEFAULT 0,
		accessed_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		attempt INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one crawl as stored in the index.
type Run struct {
	ID           string    `json:"id"`
	Seed         string    `json:"seed"`
	MaxPages     int       `json:"max_pages"`
	DryRun       bool      `json:"dry_run"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	PagesVisited int       `json:"pages_visited"`
	FailureCount int       `json:"failure_count"`
	Aborted      bool      `json:"aborted"`
}

// Finished reports whether FinishRun was called for the run.
func (r *Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Page is one visited page as stored in the index.
type Page struct {
	RunID string `json:"run_id"`

	// Seq is the 1-based position of the page in the run's visit order.
	Seq int `json:"seq"`

	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Language    string    `json:"language,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	RecordPath  string    `json:"record_path,omitempty"`
	Links       int       `json:"links"`
	Images      int       `json:"images"`
	AccessedAt  time.Time `json:"accessed_at"`
}

// StartRun registers a new run and returns its ID.
func (cdb *CrawlDB) StartRun(ctx context.Context, seed string, maxPages int, dryRun bool, startedAt time.Time) (string, error) {
	id := uuid.NewString()

	query := `
	INSERT INTO runs (id, seed, max_pages, dry_run, started_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := cdb.db.ExecContext(ctx, query, id, seed, maxPages, dryRun, formatTimestamp(startedAt)); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordPage stores a visited page. A page already recorded for the run is
// replaced.
func (cdb *CrawlDB) RecordPage(ctx context.Context, page *Page) error {
	query := `
	INSERT INTO pages (run_id, seq, url, title, language, content_hash, record_path, links, images, accessed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		seq = excluded.seq,
		title = excluded.title,
		language = excluded.language,
		content_hash = excluded.content_hash,
		record_path = excluded.record_path,
		links = excluded.links,
		images = excluded.images,
		accessed_at = excluded.accessed_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		page.RunID,
		page.Seq,
		page.URL,
		page.Title,
		page.Language,
		page.ContentHash,
		page.RecordPath,
		page.Links,
		page.Images,
		formatTimestamp(page.AccessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record page: %w", err)
	}
	return nil
}

// RecordFailure stores one failed attempt.
func (cdb *CrawlDB) RecordFailure(ctx context.Context, runID string, f model.Failure) error {
	query := `
	INSERT INTO failures (run_id, url, kind, message, attempt)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := cdb.db.ExecContext(ctx, query, runID, f.URL, string(f.Kind), f.Message, f.Attempt); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// FinishRun stores the final counts and the summary of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, runID string, summary *model.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	UPDATE runs SET
		finished_at = ?,
		pages_visited = ?,
		failure_count = ?,
		aborted = ?,
		summary_json = ?
	WHERE id = ?
	`
	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(summary.FinishedAt),
		summary.PagesVisited,
		len(summary.Failures),
		summary.Aborted,
		string(summaryJSON),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, seed, max_pages, dry_run, started_at, COALESCE(finished_at, ''), pages_visited, failure_count, aborted`

// ListRuns returns runs, newest first. An empty seed lists runs of every
// seed. A limit of zero or less returns all runs.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 2)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// GetSummary returns the summary stored by FinishRun.
func (cdb *CrawlDB) GetSummary(ctx context.Context, id string) (*model.Summary, error) {
	var summaryJSON sql.NullString
	err := cdb.db.QueryRowContext(ctx, `SELECT summary_json FROM runs WHERE id = ?`, id).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	if !summaryJSON.Valid || summaryJSON.String == "" {
		return nil, fmt.Errorf("run %s has not finished", id)
	}

	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// RunPages returns the pages of a run in visit order.
func (cdb *CrawlDB) RunPages(ctx context.Context, runID string) ([]Page, error) {
	query := `
	SELECT run_id, seq, url, COALESCE(title, ''), COALESCE(language, ''), COALESCE(content_hash, ''),
		COALESCE(record_path, ''), links, images, accessed_at
	FROM pages
	WHERE run_id = ?
	ORDER BY seq
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	pages := make([]Page, 0)
	for rows.Next() {
		var p Page
		var accessed string
		if err := rows.Scan(&p.RunID, &p.Seq, &p.URL, &p.Title, &p.Language, &p.ContentHash,
			&p.RecordPath, &p.Links, &p.Images, &accessed); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.AccessedAt = parseTimestamp(accessed)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// RunFailures returns the failures of a run in the order they were recorded.
func (cdb *CrawlDB) RunFailures(ctx context.Context, runID string) ([]model.Failure, error) {
	query := `
	SELECT url, kind, COALESCE(message, ''), attempt
	FROM failures
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer rows.Close()

	failures := make([]model.Failure, 0)
	for rows.Next() {
		var f model.Failure
		var kind string
		if err := rows.Scan(&f.URL, &kind, &f.Message, &f.Attempt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Kind = model.FailureKind(kind)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// PageHistory returns every indexed visit of url across runs, newest first.
func (cdb *CrawlDB) PageHistory(ctx context.Context, url string) ([]Page, error) {
	query := `
	SELECT run_id, seq, url, COALESCE(title, ''), COALESCE(language, ''), COALESCE(content_hash, ''),
		COALESCE(record_path, ''), links, images, accessed_at
	FROM pages
	WHERE url = ?
	ORDER BY accessed_at DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	pages := make([]Page, 0)
	for rows.Next() {
		var p Page
		var accessed string
		if err := rows.Scan(&p.RunID, &p.Seq, &p.URL, &p.Title, &p.Language, &p.ContentHash,
			&p.RecordPath, &p.Links, &p.Images, &accessed); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.AccessedAt = parseTimestamp(accessed)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		started  string
		finished string
	)
	err := row.Scan(&run.ID, &run.Seed, &run.MaxPages, &run.DryRun, &started, &finished,
		&run.PagesVisited, &run.FailureCount, &run.Aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(started)
	if finished != "" {
		run.FinishedAt = parseTimestamp(finished)
	}
	return &run, nil
}

// formatTimestamp stores times as UTC RFC3339 with nanoseconds so that
// lexical order in SQLite matches chronological order.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that may be found in the
// index. The order matters: more specific formats come first.
var timestampFormats = []string{
	"2006-01-02T15:04:05.000000000Z",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with each known format and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
