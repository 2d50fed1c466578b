package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// historyOptions selects what history shows.
type historyOptions struct {
	runID    string
	seed     string
	url      string
	limit    int
	json     bool
	markdown bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past crawl runs from the crawl index",
		Long: `History lists the crawl runs recorded in the crawl index, newest first.
With a run ID it shows the pages visited and the failures of that run.
With --url it shows every recorded visit of one page across runs.

Examples:
  # List the last 20 runs
  sitecrawl history

  # List runs of one seed
  sitecrawl history --seed https://example.com/docs

  # Show one run
  sitecrawl history 3f2b8c1e-...

  # Show when a page was visited and whether it changed
  sitecrawl history --url https://example.com/docs/intro`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("seed", "", "Only list runs of this seed")
	cmd.Flags().String("url", "", "Show every recorded visit of this page")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 = all)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", "", "Crawl index directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	var opts historyOptions
	var err error
	if opts.seed, err = flags.GetString("seed"); err != nil {
		return err
	}
	if opts.url, err = flags.GetString("url"); err != nil {
		return err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}
	if len(args) == 1 {
		opts.runID = args[0]
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("no crawl index found (run a crawl first): %w", err)
	}
	defer db.Close()

	return runHistory(commandContext(cmd), db, opts, cmd.OutOrStdout())
}

// runHistory queries the index and writes the selected view.
func runHistory(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithShowEmpty(true))
	}

	switch {
	case opts.url != "":
		pages, err := db.PageHistory(ctx, opts.url)
		if err != nil {
			return err
		}
		_, err = w.WritePageHistory(opts.url, pages)
		return err

	case opts.runID != "":
		run, err := db.GetRun(ctx, opts.runID)
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("unknown run %q", opts.runID)
		}
		if err != nil {
			return err
		}
		pages, err := db.RunPages(ctx, run.ID)
		if err != nil {
			return err
		}
		failures, err := db.RunFailures(ctx, run.ID)
		if err != nil {
			return err
		}
		_, err = w.WriteRun(&report.RunDetail{Run: *run, Pages: pages, Failures: failures})
		return err

	default:
		runs, err := db.ListRuns(ctx, opts.seed, opts.limit)
		if err != nil {
			return err
		}
		_, err = w.WriteRuns(runs)
		return err
	}
}
