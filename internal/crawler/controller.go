package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/storage"
)

// Config is the fixed input of one crawl run.
type Config struct {
	// Seed is the first URL fetched. Its host and path define the scope.
	Seed string

	// MaxPages is the maximum number of pages visited. Must be positive.
	MaxPages int

	// OutputDir is the root directory for page records.
	// It is only used when no Saver is injected with WithSaver.
	OutputDir string

	// DryRun fetches and traverses without writing any record.
	DryRun bool
}

// EventKind tells what an Event reports.
type EventKind int

const (
	// EventPageVisited is sent after a page was fetched, extracted and,
	// unless in dry-run mode, persisted.
	EventPageVisited EventKind = iota

	// EventPageFailed is sent for every recorded failure.
	EventPageFailed
)

// Event is a progress notification. Events are delivered from the goroutine
// that called Run, one at a time, in the order pages complete.
type Event struct {
	Kind EventKind

	// URL is the page the event is about.
	URL string

	// Visited is the number of pages visited so far, this one included.
	Visited int

	// Record is the page record. Set for EventPageVisited.
	Record *model.PageRecord

	// Result is the extraction result. Set for EventPageVisited.
	Result *extract.Result

	// Enqueued is the number of links added to the frontier.
	Enqueued int

	// Path is where the record was written. Empty in dry-run mode.
	Path string

	// Failure is set for EventPageFailed.
	Failure *model.Failure
}

// Controller runs one breadth-first crawl.
// A Controller is single-shot; create a new one for every run.
type Controller struct {
	cfg Config

	fetcher   fetch.Fetcher
	extractor extract.Extractor
	saver     storage.Saver
	filter    scope.Filter
	rules     pathRules
	logger    *slog.Logger

	headers     map[string]string
	workers     int
	maxAttempts int
	progress    func(Event)
	now         func() time.Time

	started atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(c *Controller) {
		c.fetcher = f
	}
}

// WithExtractor replaces the default HTML extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(c *Controller) {
		c.extractor = e
	}
}

// WithSaver replaces the filesystem writer rooted at Config.OutputDir.
func WithSaver(s storage.Saver) Option {
	return func(c *Controller) {
		c.saver = s
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithHeaders sets request headers sent with every fetch.
// A User-Agent header is also stored as the record's browser agent.
func WithHeaders(h map[string]string) Option {
	return func(c *Controller) {
		c.headers = h
	}
}

// WithWorkers sets how many fetches may be in flight at once.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		c.workers = n
	}
}

// WithScopeMode selects how seed and candidate paths are compared.
func WithScopeMode(m scope.Mode) Option {
	return func(c *Controller) {
		c.filter = scope.Filter{Mode: m}
	}
}

// WithMaxAttempts caps how often a failing URL is tried within one run.
// Zero, the default, means no cap.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		c.maxAttempts = n
	}
}

// WithIgnorePatterns skips discovered links whose path matches a pattern
// (e.g. "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Controller) {
		c.rules.ignore = patterns
	}
}

// WithFollowPatterns only enqueues discovered links whose path matches at
// least one pattern. The seed is always fetched.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Controller) {
		c.rules.follow = patterns
	}
}

// WithProgress registers a callback for progress events.
func WithProgress(fn func(Event)) Option {
	return func(c *Controller) {
		c.progress = fn
	}
}

// WithClock replaces the clock used for access timestamps and the summary.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a Controller for cfg.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxPages, cfg.MaxPages)
	}

	c := &Controller{
		cfg:       cfg,
		extractor: extract.New(),
		filter:    scope.Filter{Mode: scope.ModePrefix},
		logger:    slog.New(slog.DiscardHandler),
		headers:   map[string]string{},
		workers:   1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.workers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, c.workers)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.NewHTTPFetcher(&http.Client{Timeout: fetch.DefaultTimeout})
	}
	if c.saver == nil {
		c.saver = storage.NewWriter(cfg.OutputDir, storage.WithClock(c.now))
	}
	return c, nil
}

// outcome is what a worker hands back for one URL.
type outcome struct {
	url      string
	attempt  int
	content  string
	accessed time.Time
	result   *extract.Result
	err      error
	kind     model.FailureKind
}

// Run performs the crawl and returns its summary.
//
// Page-level fetch and parse failures are recorded in the summary and do not
// make Run fail. Run returns an error together with the partial summary when
// ctx is cancelled or a record cannot be persisted.
func (c *Controller) Run(ctx context.Context) (*model.Summary, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	seed, seedErr := normalizeSeed(c.cfg.Seed)
	if seedErr == nil {
		c.cfg.Seed = seed
	}

	summary := model.NewSummary(c.cfg.Seed, c.cfg.MaxPages, c.cfg.DryRun)
	summary.StartedAt = c.now()

	var err error
	if seedErr != nil {
		c.fail(summary, model.Failure{
			URL:     c.cfg.Seed,
			Kind:    model.FailureFetch,
			Message: seedErr.Error(),
			Attempt: 1,
		})
	} else {
		err = c.crawl(ctx, summary)
	}

	summary.FinishedAt = c.now()
	c.logger.Info("crawl finished",
		"seed", c.cfg.Seed,
		"visited", summary.PagesVisited,
		"failures", len(summary.Failures),
		"duration", summary.Duration())
	return summary, err
}

func (c *Controller) crawl(ctx context.Context, summary *model.Summary) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		queue    = newFrontier(c.cfg.Seed)
		visited  = visitedSet{}
		inFlight = map[string]struct{}{}
		attempts = map[string]int{}
		results  = make(chan outcome, c.workers)
		g        errgroup.Group
	)
	g.SetLimit(c.workers)

	var abortErr error
	for {
		for abortErr == nil && ctx.Err() == nil &&
			len(inFlight) < c.workers &&
			len(visited)+len(inFlight) < c.cfg.MaxPages {
			u, ok := queue.pop()
			if !ok {
				break
			}
			if _, busy := inFlight[u]; busy || visited.Contains(u) {
				continue
			}
			if c.maxAttempts > 0 && attempts[u] >= c.maxAttempts {
				c.logger.Debug("attempt limit reached", "url", u, "attempts", attempts[u])
				continue
			}

			inFlight[u] = struct{}{}
			attempts[u]++
			attempt := attempts[u]
			g.Go(func() error {
				results <- c.process(workCtx, u, attempt)
				return nil
			})
		}

		if len(inFlight) == 0 {
			break
		}

		out := <-results
		delete(inFlight, out.url)

		if abortErr != nil {
			continue
		}
		if out.err != nil {
			if ctx.Err() != nil && errors.Is(out.err, ctx.Err()) {
				continue
			}
			c.fail(summary, model.Failure{
				URL:     out.url,
				Kind:    out.kind,
				Message: out.err.Error(),
				Attempt: out.attempt,
			})
			continue
		}

		if err := c.visit(summary, visited, queue, out); err != nil {
			abortErr = err
			cancel()
		}
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	if abortErr != nil {
		summary.Aborted = true
		return abortErr
	}
	if err := ctx.Err(); err != nil {
		summary.Aborted = true
		return err
	}
	return nil
}

// process fetches and extracts one URL. It runs on a worker goroutine and
// must not touch Controller state beyond its read-only collaborators.
func (c *Controller) process(ctx context.Context, u string, attempt int) outcome {
	content, err := c.fetcher.Fetch(ctx, u, c.headers)
	if err != nil {
		return outcome{url: u, attempt: attempt, err: err, kind: model.FailureFetch}
	}
	accessed := c.now()

	result, err := c.extractor.Extract(u, content)
	if err != nil {
		return outcome{
			url:     u,
			attempt: attempt,
			err:     &ParseError{URL: u, Err: err},
			kind:    model.FailureParse,
		}
	}

	return outcome{url: u, attempt: attempt, content: content, accessed: accessed, result: result}
}

// visit records a successful page: mark visited, count, persist, enqueue.
func (c *Controller) visit(summary *model.Summary, visited visitedSet, queue *frontier, out outcome) error {
	visited.add(out.url)
	summary.PagesVisited++
	summary.Visited = append(summary.Visited, out.url)

	rec := model.NewPageRecord(out.url, out.content, c.userAgent(), out.accessed)

	var path string
	if !c.cfg.DryRun {
		p, err := c.saver.Save(rec)
		if err != nil {
			c.fail(summary, model.Failure{
				URL:     out.url,
				Kind:    model.FailurePersistence,
				Message: err.Error(),
				Attempt: out.attempt,
			})
			return &PersistenceError{URL: out.url, Err: err}
		}
		path = p
		summary.Saved = append(summary.Saved, model.SavedPage{URL: out.url, Path: path})
	}

	enqueued := 0
	for _, link := range out.result.Links {
		if !c.filter.Eligible(link.URL, c.cfg.Seed, visited) || !c.rules.allows(link.URL) {
			continue
		}
		queue.push(link.URL)
		enqueued++
	}

	c.logger.Info("page visited",
		"url", out.url,
		"visited", summary.PagesVisited,
		"links", len(out.result.Links),
		"enqueued", enqueued,
		"path", path)

	c.emit(Event{
		Kind:     EventPageVisited,
		URL:      out.url,
		Visited:  summary.PagesVisited,
		Record:   rec,
		Result:   out.result,
		Enqueued: enqueued,
		Path:     path,
	})
	return nil
}

func (c *Controller) fail(summary *model.Summary, f model.Failure) {
	summary.Failures = append(summary.Failures, f)
	c.logger.Warn("page failed",
		"url", f.URL,
		"kind", string(f.Kind),
		"attempt", f.Attempt,
		"error", f.Message)
	c.emit(Event{
		Kind:    EventPageFailed,
		URL:     f.URL,
		Visited: summary.PagesVisited,
		Failure: &f,
	})
}

func (c *Controller) emit(e Event) {
	if c.progress != nil {
		c.progress(e)
	}
}

// userAgent returns the configured User-Agent header, matched case-insensitively.
func (c *Controller) userAgent() string {
	for k, v := range c.headers {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			return v
		}
	}
	return ""
}

// normalizeSeed rejects seeds that cannot be fetched at all and puts the
// rest in the form extracted links take: no fragment, and "/" for an empty
// path, which is what an HTTP client requests anyway.
func normalizeSeed(seed string) (string, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err) //nolint:errorlint // sentinel is the identity
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
