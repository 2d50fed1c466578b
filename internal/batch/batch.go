package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultConcurrency is the number of seeds crawled at once when no
// concurrency is configured.
const DefaultConcurrency = 4

// CrawlFunc crawls one seed. It must build all crawl state itself.
type CrawlFunc func(ctx context.Context, seed string) (*model.Summary, error)

// Result is the outcome for one seed.
type Result struct {
	// Index is the position of the seed in the input.
	Index int

	Seed string

	// Summary may be partial when Err is set, or nil when the crawl could
	// not start.
	Summary *model.Summary
	Err     error
}

// Processor runs a CrawlFunc for many seeds with bounded concurrency.
type Processor struct {
	crawl       CrawlFunc
	concurrency int
	logger      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger for batch-level messages.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProcessor creates a Processor that crawls each seed with crawl.
func NewProcessor(crawl CrawlFunc, opts ...Option) *Processor {
	p := &Processor{
		crawl:       crawl,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Process crawls every seed and returns the results in input order.
// Seeds that have not started when ctx is cancelled report ctx.Err().
func (p *Processor) Process(ctx context.Context, seeds []string) []Result {
	results := make([]Result, len(seeds))
	p.ProcessWithCallback(ctx, seeds, func(r Result) {
		results[r.Index] = r
	})
	return results
}

// ProcessWithCallback crawls every seed and calls callback once per seed as
// soon as its crawl ends. callback is called from worker goroutines and must
// be safe for concurrent use.
func (p *Processor) ProcessWithCallback(ctx context.Context, seeds []string, callback func(Result)) {
	p.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", p.concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				callback(Result{Index: i, Seed: seed, Err: err})
				return nil
			}

			p.logger.Info("crawling seed", "seed", seed, "index", i+1, "total", len(seeds))
			summary, err := p.crawl(ctx, seed)
			if err != nil {
				p.logger.Warn("crawl ended with error", "seed", seed, "error", err)
			}
			callback(Result{Index: i, Seed: seed, Summary: summary, Err: err})
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // crawls report errors through Result

	p.logger.Info("batch complete", "seeds", len(seeds), "elapsed", time.Since(start))
}
