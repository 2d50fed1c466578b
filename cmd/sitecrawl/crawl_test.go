package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/scope"
)

// testSite serves a small site:
//
//	/docs        -> /docs/a, /docs/missing, /other
//	/docs/a      -> /docs
//	/docs/missing   404
//	/other       -> /docs
type testSite struct {
	*httptest.Server

	mu         sync.Mutex
	userAgents []string
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{}
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			site.mu.Lock()
			site.userAgents = append(site.userAgents, r.Header.Get("User-Agent"))
			site.mu.Unlock()
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, body)
		}
	}
	mux.HandleFunc("/docs", page(`<html><head><title>Docs</title></head><body>
<p>The quick brown fox jumps over the lazy dog while reading documentation.</p>
<a href="/docs/a">Page A</a> <a href="/docs/missing">Missing</a> <a href="/other">Other</a>
<img src="/logo.png" alt="logo"></body></html>`))
	mux.HandleFunc("/docs/a", page(`<html><head><title>Page A</title></head><body><a href="/docs">Back</a></body></html>`))
	mux.HandleFunc("/other", page(`<html><head><title>Other</title></head><body><a href="/docs">Docs</a></body></html>`))
	mux.HandleFunc("/docs/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) agents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestConfig returns a crawl config writing into t.TempDir().
func newTestConfig(t *testing.T, seeds ...string) *config.Config {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Seeds = seeds
	cfg.OutputDir = filepath.Join(tmpDir, "pages")
	cfg.DBDir = filepath.Join(tmpDir, "db")
	cfg.SaveToDB = true
	cfg.SiteConfigs = &config.File{}
	return cfg
}

// countRecords returns the number of JSON files below root.
func countRecords(t *testing.T, root string) int {
	t.Helper()

	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return n
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	if cmd.Use != "crawl [seed...]" {
		t.Errorf("unexpected use %q", cmd.Use)
	}

	tests := []struct {
		name     string
		defValue string
	}{
		{"max-pages", "10"},
		{"output", "saved_pages"},
		{"dry-run", "false"},
		{"workers", "1"},
		{"batch", "4"},
		{"scope-mode", "prefix"},
		{"max-attempts", "0"},
		{"user-agent", config.DefaultUserAgent},
		{"timeout", "30s"},
		{"json", "false"},
		{"markdown", "false"},
		{"no-index", "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		if flag == nil {
			t.Errorf("expected %s flag", tt.name)
			continue
		}
		if flag.DefValue != tt.defValue {
			t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
		}
	}
}

// parseCrawlFlags returns the crawl subcommand of a fresh root command with
// args parsed, so inherited flags resolve as they do at run time.
func parseCrawlFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	root := NewRootCmd()
	cmd, _, err := root.Find([]string{"crawl"})
	if err != nil {
		t.Fatalf("crawl command not found: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

// TestBuildCrawlConfig tests flag to config mapping.
func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	t.Run("maps flags", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "crawl.yaml")
		content := "sites:\n  example.com:\n    maxPages: 3\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := parseCrawlFlags(t,
			"-p", "25", "-o", "out", "--dry-run", "-w", "3", "-b", "2",
			"--scope-mode", "segment", "--max-attempts", "2",
			"-H", "X-Token=abc", "-H", "accept-language = en",
			"-A", "bot/2", "-t", "5s", "--json", "--no-index", "--db-dir", "idx",
			"-v", "--config", configPath,
		)
		cfg, err := buildCrawlConfig(cmd, []string{"https://example.com/docs"})
		if err != nil {
			t.Fatalf("buildCrawlConfig() error = %v", err)
		}

		if cfg.MaxPages != 25 || cfg.OutputDir != "out" || !cfg.DryRun || cfg.Workers != 3 || cfg.BatchSize != 2 {
			t.Errorf("unexpected crawl settings: %+v", cfg)
		}
		if cfg.ScopeMode != scope.ModeSegment || cfg.MaxAttempts != 2 {
			t.Errorf("unexpected scope settings: mode=%q attempts=%d", cfg.ScopeMode, cfg.MaxAttempts)
		}
		wantHeaders := map[string]string{"X-Token": "abc", "Accept-Language": "en"}
		if diff := cmp.Diff(wantHeaders, cfg.Headers); diff != "" {
			t.Errorf("headers mismatch (-want +got):\n%s", diff)
		}
		if cfg.UserAgent != "bot/2" || cfg.Timeout.String() != "5s" {
			t.Errorf("unexpected request settings: ua=%q timeout=%v", cfg.UserAgent, cfg.Timeout)
		}
		if !cfg.JSONReport || cfg.SaveToDB || cfg.DBDir != "idx" || !cfg.Verbose {
			t.Errorf("unexpected output settings: %+v", cfg)
		}
		if got := cfg.SiteConfigs.GetSiteConfig("example.com").MaxPages; got != 3 {
			t.Errorf("expected site config to be loaded, got maxPages %d", got)
		}
		if diff := cmp.Diff([]string{"https://example.com/docs"}, cfg.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("default seed and index directory", func(t *testing.T) {
		t.Parallel()

		cmd := parseCrawlFlags(t, "--config", writeEmptyConfig(t))
		cfg, err := buildCrawlConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildCrawlConfig() error = %v", err)
		}
		if diff := cmp.Diff([]string{config.DefaultSeed}, cfg.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
		if !cfg.SaveToDB || cfg.DBDir != config.XDGDataDir() {
			t.Errorf("expected index in XDG data dir, got save=%v dir=%q", cfg.SaveToDB, cfg.DBDir)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("invalid header", func(t *testing.T) {
		t.Parallel()

		cmd := parseCrawlFlags(t, "-H", "no-equals-sign", "--config", writeEmptyConfig(t))
		if _, err := buildCrawlConfig(cmd, nil); !errors.Is(err, config.ErrInvalidHeader) {
			t.Errorf("expected ErrInvalidHeader, got %v", err)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := parseCrawlFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := buildCrawlConfig(cmd, nil)
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("sites: {}\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestRunCrawl tests complete crawls against a local site.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls in scope, saves and indexes", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")

		var out, errOut strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("runCrawl() error = %v\n%s", err, errOut.String())
		}

		output := out.String()
		for _, want := range []string{
			"Crawling " + site.URL + "/docs...",
			"[1/10] " + site.URL + "/docs (+2 links)",
			"[2/10] " + site.URL + "/docs/a",
			"error: " + site.URL + "/docs/missing",
			"CRAWL SUMMARY",
			"Pages Visited:  2 / 10",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "] "+site.URL+"/other") {
			t.Error("out-of-scope page should not be visited")
		}

		if got := countRecords(t, cfg.OutputDir); got != 2 {
			t.Errorf("expected 2 records, got %d", got)
		}
		for _, ua := range site.agents() {
			if ua != config.DefaultUserAgent {
				t.Errorf("expected User-Agent %q, got %q", config.DefaultUserAgent, ua)
			}
		}

		db, err := database.Open(cfg.DBDir, database.Options{})
		if err != nil {
			t.Fatalf("failed to open index: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		runs, err := db.ListRuns(ctx, "", 0)
		if err != nil || len(runs) != 1 {
			t.Fatalf("expected one run, got %d (err: %v)", len(runs), err)
		}
		run := runs[0]
		if run.PagesVisited != 2 || run.FailureCount != 1 || !run.Finished() || run.Aborted {
			t.Errorf("unexpected run: %+v", run)
		}

		pages, err := db.RunPages(ctx, run.ID)
		if err != nil {
			t.Fatalf("RunPages() error = %v", err)
		}
		if len(pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(pages))
		}
		first := pages[0]
		if first.URL != site.URL+"/docs" || first.Seq != 1 || first.Title != "Docs" || first.Links != 3 || first.Images != 1 {
			t.Errorf("unexpected first page: %+v", first)
		}
		if first.RecordPath == "" || first.ContentHash == "" {
			t.Errorf("expected record path and hash, got %+v", first)
		}

		failures, err := db.RunFailures(ctx, run.ID)
		if err != nil || len(failures) != 1 || failures[0].URL != site.URL+"/docs/missing" {
			t.Errorf("unexpected failures: %+v (err: %v)", failures, err)
		}
	})

	t.Run("dry run writes no records", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")
		cfg.DryRun = true

		var out strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, io.Discard); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}
		if got := countRecords(t, cfg.OutputDir); got != 0 {
			t.Errorf("expected no records in dry run, got %d", got)
		}
		if !strings.Contains(out.String(), "(dry run)") || !strings.Contains(out.String(), "Pages Visited:  2 / 10") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("no index", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")
		cfg.SaveToDB = false

		if err := runCrawl(context.Background(), cfg, discardLogger(), io.Discard, io.Discard); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected no index database, stat error = %v", err)
		}
	})

	t.Run("json report file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "summary.json")

		var out strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, io.Discard); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}
		// Progress stays on stdout when the report goes to a file.
		if !strings.Contains(out.String(), "[1/10]") {
			t.Errorf("expected progress on stdout, got %q", out.String())
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var parsed report.JSONReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if parsed.Version == "" || parsed.Summary == nil {
			t.Fatalf("unexpected report: %s", data)
		}
		want := []string{site.URL + "/docs", site.URL + "/docs/a"}
		if diff := cmp.Diff(want, parsed.Summary.Visited); diff != "" {
			t.Errorf("visited mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("batch of seeds", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs", site.URL+"/other")
		cfg.BatchSize = 2
		cfg.JSONReport = true

		var out, errOut strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}

		// Structured stdout carries one compact summary per seed.
		seeds := map[string]int{}
		scanner := bufio.NewScanner(strings.NewReader(out.String()))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var parsed report.JSONReport
			if err := json.Unmarshal(scanner.Bytes(), &parsed); err != nil {
				t.Fatalf("line is not JSON: %v\n%s", err, scanner.Text())
			}
			seeds[parsed.Summary.Seed] = parsed.Summary.PagesVisited
		}
		// /other only links back to /docs, which is outside its scope.
		want := map[string]int{site.URL + "/docs": 2, site.URL + "/other": 1}
		if diff := cmp.Diff(want, seeds); diff != "" {
			t.Errorf("summaries mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(errOut.String(), "Crawling 2 seeds") {
			t.Errorf("expected progress on stderr, got %q", errOut.String())
		}
	})

	t.Run("persistence failure is an error", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		cfg.OutputDir = blocker

		var errOut strings.Builder
		err := runCrawl(context.Background(), cfg, discardLogger(), io.Discard, &errOut)
		var persistErr *crawler.PersistenceError
		if !errors.As(err, &persistErr) {
			t.Fatalf("expected *crawler.PersistenceError, got %v", err)
		}
		if !strings.Contains(errOut.String(), "Crawl error for") {
			t.Errorf("expected error on stderr, got %q", errOut.String())
		}
	})

	t.Run("unreachable seed still exits cleanly", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs/missing")

		var out strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, io.Discard); err != nil {
			t.Fatalf("page failures must not fail the command: %v", err)
		}
		if !strings.Contains(out.String(), "Pages Visited:  0 / 10") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runCrawl(ctx, cfg, discardLogger(), io.Discard, io.Discard)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("site config overrides budget", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfg := newTestConfig(t, site.URL+"/docs")
		cfg.SiteConfigs = &config.File{Sites: map[string]config.SiteConfig{
			config.HostOf(site.URL): {MaxPages: 1, UserAgent: "site-agent"},
		}}

		var out strings.Builder
		if err := runCrawl(context.Background(), cfg, discardLogger(), &out, io.Discard); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}
		if !strings.Contains(out.String(), "Pages Visited:  1 / 1") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
		if diff := cmp.Diff([]string{"site-agent"}, site.agents()); diff != "" {
			t.Errorf("agents mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestProgressPrinter tests progress lines.
func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	p := &progressPrinter{out: &out, labelSeeds: true}
	p.start("https://example.com/docs", true)
	p.print("https://example.com/docs", 5, crawler.Event{
		Kind: crawler.EventPageVisited, URL: "https://example.com/docs", Visited: 1, Enqueued: 3,
		Path: "saved/example_com/_docs/page.json",
	})
	p.print("https://example.com/docs", 5, crawler.Event{Kind: crawler.EventPageFailed, URL: "https://example.com/docs/x"})

	want := "[example.com] Crawling https://example.com/docs (dry run)...\n" +
		"[example.com] [1/5] https://example.com/docs (+3 links)\n" +
		"[example.com]         saved saved/example_com/_docs/page.json\n" +
		"[example.com]   error: https://example.com/docs/x: \n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
