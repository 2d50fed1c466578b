package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
)

// runIndex records one crawl run in the crawl index as it progresses.
// A nil *runIndex is valid and records nothing, so callers need not check
// whether indexing is enabled. Index failures are logged and never stop the
// crawl.
type runIndex struct {
	db     *database.CrawlDB
	logger *slog.Logger

	// ctx outlives cancellation of the crawl so an interrupted run is still
	// recorded with its partial summary.
	ctx   context.Context
	runID string
}

// startRunIndex registers a run. It returns nil when db is nil or the run
// cannot be registered.
func startRunIndex(ctx context.Context, db *database.CrawlDB, logger *slog.Logger, seed string, maxPages int, dryRun bool) *runIndex {
	if db == nil {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	id, err := db.StartRun(ctx, seed, maxPages, dryRun, time.Now())
	if err != nil {
		logger.Warn("failed to record run in index", "seed", seed, "error", err)
		return nil
	}
	return &runIndex{db: db, logger: logger, ctx: ctx, runID: id}
}

// observe records a visited page or a failure.
func (r *runIndex) observe(ev crawler.Event) {
	if r == nil {
		return
	}

	switch ev.Kind {
	case crawler.EventPageVisited:
		if err := r.db.RecordPage(r.ctx, pageFromEvent(r.runID, ev)); err != nil {
			r.logger.Warn("failed to index page", "url", ev.URL, "error", err)
		}
	case crawler.EventPageFailed:
		if ev.Failure == nil {
			return
		}
		if err := r.db.RecordFailure(r.ctx, r.runID, *ev.Failure); err != nil {
			r.logger.Warn("failed to index failure", "url", ev.URL, "error", err)
		}
	}
}

// finish stores the final summary.
func (r *runIndex) finish(summary *model.Summary) {
	if r == nil || summary == nil {
		return
	}
	if err := r.db.FinishRun(r.ctx, r.runID, summary); err != nil {
		r.logger.Warn("failed to finish run in index", "run", r.runID, "error", err)
		return
	}
	r.logger.Info("run indexed", "run", r.runID, "pages", summary.PagesVisited)
}

// pageFromEvent derives the indexed metadata of a visited page.
func pageFromEvent(runID string, ev crawler.Event) *database.Page {
	page := &database.Page{
		RunID:      runID,
		Seq:        ev.Visited,
		URL:        ev.URL,
		RecordPath: ev.Path,
	}
	if ev.Record != nil {
		page.ContentHash = ev.Record.Hash()
		page.AccessedAt = ev.Record.DateAccessed
		page.Language = extract.Language(extract.Text(ev.Record.Content))
	}
	if ev.Result != nil {
		page.Title = ev.Result.Title
		page.Links = len(ev.Result.Links)
		page.Images = len(ev.Result.Images)
	}
	return page
}
