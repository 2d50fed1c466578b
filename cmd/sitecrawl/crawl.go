package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/batch"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/scope"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Crawl a site breadth-first from a seed URL",
		Long: `Crawl fetches the seed URL and then, breadth-first, every linked page on the
same host whose path starts with the seed's path, until the page budget is
spent or no links are left.

Each fetched page is saved as JSON under the output directory:
  <output>/<host with . as _>/<path with / as _>/page_<YYYYMMDD_HHMMSS>.json

Pages that fail to download or parse are reported and skipped; the crawl goes
on and the command still exits 0. Only a failure to write a record stops the
crawl.

Examples:
  # Crawl up to 10 pages below /docs
  sitecrawl crawl https://example.com/docs

  # Traverse without saving anything
  sitecrawl crawl --dry-run --max-pages 50 https://example.com/docs

  # Crawl several sites, two at a time, with four fetches in flight each
  sitecrawl crawl -b 2 -w 4 https://a.example https://b.example https://c.example

  # Send extra headers and print a Markdown summary
  sitecrawl crawl -H "Authorization=Bearer token" --markdown https://example.com/app`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit per seed")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Root directory for saved page records")
	cmd.Flags().Bool("dry-run", false,
		"Fetch and traverse without saving page records")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of fetches in flight per seed")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")
	cmd.Flags().String("scope-mode", string(scope.ModePrefix),
		`How link paths are matched against the seed path: "prefix" or "segment"`)
	cmd.Flags().Int("max-attempts", 0,
		"Maximum attempts per failing URL (0 = no limit)")

	// Request flags
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra request header as KEY=VALUE (repeatable)")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header, also stored as the record's browser agent (empty to omit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Transport flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Route requests through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the summary to this file (creates directories if needed)")

	// Index flags
	cmd.Flags().Bool("no-index", false,
		"Do not record the run in the crawl index")
	cmd.Flags().String("db-dir", "",
		"Crawl index directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFile, cfg.SensitiveHeaderNames()...)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	mode, err := flags.GetString("scope-mode")
	if err != nil {
		return nil, err
	}
	cfg.ScopeMode = scope.Mode(mode)
	if cfg.MaxAttempts, err = flags.GetInt("max-attempts"); err != nil {
		return nil, err
	}

	pairs, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = config.ParseHeaders(pairs); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	noIndex, err := flags.GetBool("no-index")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noIndex
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getStringFlag(cmd, "log-file")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Seeds = args
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = []string{config.DefaultSeed}
	}

	return cfg, nil
}

// runCrawl crawls every seed and writes one summary per seed.
// Page failures do not make it fail; an aborted or cancelled crawl does.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"dryRun", cfg.DryRun,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open crawl index: %w", err)
		}
		defer db.Close()
		logger.Info("crawl index opened", "path", db.Path())
	}

	// Structured reports on stdout must stay parseable, so progress moves
	// to stderr.
	progressOut := out
	if cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport) {
		progressOut = errOut
	}

	client, stop, err := newHTTPClient(ctx, cfg, logger, progressOut)
	if err != nil {
		return err
	}
	defer stop()

	fetcher := fetch.NewHTTPFetcher(client,
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	)

	writer, closeReport, err := newReportWriter(cfg, out)
	if err != nil {
		return err
	}
	defer closeReport()

	printer := &progressPrinter{out: progressOut, labelSeeds: len(cfg.Seeds) > 1}
	crawl := func(ctx context.Context, seed string) (*model.Summary, error) {
		return crawlSeed(ctx, cfg, seed, fetcher, db, printer, logger)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	handle := func(r batch.Result) {
		mu.Lock()
		defer mu.Unlock()

		if r.Summary != nil {
			if _, err := writer.WriteSummary(r.Summary); err != nil {
				logger.Error("report failed", "seed", r.Seed, "error", err)
				errs = append(errs, fmt.Errorf("report for %s: %w", r.Seed, err))
			}
		}
		if r.Err != nil {
			fmt.Fprintf(errOut, "Crawl error for %s: %v\n", r.Seed, r.Err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Seed, r.Err))
		}
	}

	if len(cfg.Seeds) > 1 && cfg.BatchSize > 1 {
		fmt.Fprintf(progressOut, "Crawling %d seeds (concurrency: %d)...\n\n", len(cfg.Seeds), cfg.BatchSize)
		start := time.Now()
		batch.NewProcessor(crawl,
			batch.WithConcurrency(cfg.BatchSize),
			batch.WithLogger(logger),
		).ProcessWithCallback(ctx, cfg.Seeds, handle)
		fmt.Fprintf(progressOut, "\nBatch crawl completed in %s\n", time.Since(start).Round(time.Millisecond))
	} else {
		for i, seed := range cfg.Seeds {
			if err := ctx.Err(); err != nil {
				handle(batch.Result{Index: i, Seed: seed, Err: err})
				break
			}
			summary, err := crawl(ctx, seed)
			handle(batch.Result{Index: i, Seed: seed, Summary: summary, Err: err})
		}
	}

	return errors.Join(errs...)
}

// crawlSeed runs one Controller for seed with the settings that apply to
// its host.
func crawlSeed(ctx context.Context, cfg *config.Config, seed string, fetcher fetch.Fetcher, db *database.CrawlDB, printer *progressPrinter, logger *slog.Logger) (*model.Summary, error) {
	settings, err := cfg.ForSeed(seed)
	if err != nil {
		return nil, err
	}

	seedLogger := logger.With("seed", seed)
	index := startRunIndex(ctx, db, seedLogger, seed, settings.MaxPages, cfg.DryRun)

	ctrl, err := crawler.New(
		crawler.Config{
			Seed:      seed,
			MaxPages:  settings.MaxPages,
			OutputDir: cfg.OutputDir,
			DryRun:    cfg.DryRun,
		},
		crawler.WithFetcher(fetcher),
		crawler.WithLogger(seedLogger),
		crawler.WithHeaders(settings.Headers),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithScopeMode(settings.ScopeMode),
		crawler.WithMaxAttempts(settings.MaxAttempts),
		crawler.WithIgnorePatterns(settings.IgnorePatterns),
		crawler.WithFollowPatterns(settings.FollowPatterns),
		crawler.WithProgress(func(ev crawler.Event) {
			printer.print(seed, settings.MaxPages, ev)
			index.observe(ev)
		}),
	)
	if err != nil {
		return nil, err
	}

	printer.start(seed, cfg.DryRun)
	summary, err := ctrl.Run(ctx)
	index.finish(summary)
	return summary, err
}

// newReportWriter returns the summary writer selected by the report flags.
// The returned close function is never nil.
func newReportWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	output := stdout
	closeFn := func() {}

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, closeFn, fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		// Reports may list URLs of private sites.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to create report file: %w", err)
		}
		output = f
		closeFn = func() { _ = f.Close() } //nolint:errcheck // written through already
	}

	switch {
	case cfg.JSONReport:
		opts := []report.JSONWriterOption{report.WithVersion(readBuildInfo().Version)}
		if len(cfg.Seeds) == 1 {
			opts = append(opts, report.WithPrettyPrint())
		}
		return report.NewJSONWriter(output, opts...), closeFn, nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeFn, nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose)), closeFn, nil
	}
}

// progressPrinter writes one line per visited page and per failure.
// It is shared by concurrent crawls in batch mode.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer

	// labelSeeds prefixes lines with the seed's host when several seeds
	// are crawled.
	labelSeeds bool
}

func (p *progressPrinter) label(seed string) string {
	if !p.labelSeeds {
		return ""
	}
	return "[" + config.HostOf(seed) + "] "
}

func (p *progressPrinter) start(seed string, dryRun bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(p.out, "%sCrawling %s%s...\n", p.label(seed), seed, mode)
}

func (p *progressPrinter) print(seed string, maxPages int, ev crawler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case crawler.EventPageVisited:
		fmt.Fprintf(p.out, "%s[%d/%d] %s (+%d links)\n", p.label(seed), ev.Visited, maxPages, ev.URL, ev.Enqueued)
		if ev.Path != "" {
			fmt.Fprintf(p.out, "%s        saved %s\n", p.label(seed), ev.Path)
		}
	case crawler.EventPageFailed:
		msg := ""
		if ev.Failure != nil {
			msg = ev.Failure.Message
		}
		fmt.Fprintf(p.out, "%s  error: %s: %s\n", p.label(seed), ev.URL, msg)
	}
}
