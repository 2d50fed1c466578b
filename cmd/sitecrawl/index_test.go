package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
)

// TestPageFromEvent tests the metadata derived for the index.
func TestPageFromEvent(t *testing.T) {
	t.Parallel()

	accessed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	content := "<html><body><p>The quick brown fox jumps over the lazy dog and keeps running through the forest.</p></body></html>"
	rec := model.NewPageRecord("https://example.com/docs", content, "", accessed)

	ev := crawler.Event{
		Kind:    crawler.EventPageVisited,
		URL:     "https://example.com/docs",
		Visited: 3,
		Record:  rec,
		Result: &extract.Result{
			Title:  "Docs",
			Links:  []model.LinkRecord{{URL: "https://example.com/docs/a"}, {URL: "https://example.com/docs/b"}},
			Images: []model.ImageRecord{{Source: "https://example.com/logo.png"}},
		},
		Path: "/tmp/out/page.json",
	}

	got := pageFromEvent("run-1", ev)
	want := &database.Page{
		RunID:       "run-1",
		Seq:         3,
		URL:         "https://example.com/docs",
		Title:       "Docs",
		Language:    extract.Language(extract.Text(content)),
		ContentHash: rec.Hash(),
		RecordPath:  "/tmp/out/page.json",
		Links:       2,
		Images:      1,
		AccessedAt:  accessed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

// TestNilRunIndex tests that a disabled index is a no-op.
func TestNilRunIndex(t *testing.T) {
	t.Parallel()

	idx := startRunIndex(context.Background(), nil, discardLogger(), "https://example.com", 10, false)
	if idx != nil {
		t.Fatal("expected nil index without a database")
	}
	idx.observe(crawler.Event{Kind: crawler.EventPageVisited, URL: "https://example.com"})
	idx.finish(model.NewSummary("https://example.com", 10, false))
}

// TestRunIndexSurvivesCancellation tests that a run started under a
// cancelled context is still finished in the index.
func TestRunIndexSurvivesCancellation(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	idx := startRunIndex(ctx, db, discardLogger(), "https://example.com", 5, false)
	if idx == nil {
		t.Fatal("expected index to start")
	}
	cancel()

	failure := &model.Failure{URL: "https://example.com/x", Kind: model.FailureFetch, Message: "boom", Attempt: 1}
	idx.observe(crawler.Event{Kind: crawler.EventPageFailed, URL: failure.URL, Failure: failure})
	idx.observe(crawler.Event{Kind: crawler.EventPageFailed, URL: "https://example.com/y"})

	summary := model.NewSummary("https://example.com", 5, false)
	summary.Failures = []model.Failure{*failure}
	summary.FinishedAt = time.Now()
	idx.finish(summary)

	run, err := db.GetRun(context.Background(), idx.runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !run.Finished() || run.FailureCount != 1 {
		t.Errorf("unexpected run: %+v", run)
	}
	failures, err := db.RunFailures(context.Background(), idx.runID)
	if err != nil {
		t.Fatalf("RunFailures() error = %v", err)
	}
	if diff := cmp.Diff([]model.Failure{*failure}, failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}
