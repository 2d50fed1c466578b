package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/storage"
)

// inspectOptions selects what inspect prints.
type inspectOptions struct {
	text     bool
	markdown bool
	json     bool
	save     bool
}

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Fetch one page and show its links and images",
		Long: `Inspect fetches a single page without crawling and prints what the crawler
would extract from it: every link with its anchor text and surrounding
context, and every image with its alt text and title.

Examples:
  # Show links and images
  sitecrawl inspect https://example.com

  # Also print the visible text, or the page converted to Markdown
  sitecrawl inspect --text https://example.com
  sitecrawl inspect --markdown https://example.com

  # Machine-readable output
  sitecrawl inspect --json https://example.com

  # Save the page record like crawl does
  sitecrawl inspect --save -o saved_pages https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runInspectCmd,
	}

	cmd.Flags().Bool("text", false, "Print the visible text of the page")
	cmd.Flags().Bool("markdown", false, "Print the page converted to Markdown")
	cmd.Flags().BoolP("json", "j", false, "Print links, images and title as JSON")
	cmd.Flags().Bool("save", false, "Save the page record under the output directory")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Root directory for saved page records")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra request header as KEY=VALUE (repeatable)")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header (empty to omit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for the request")
	cmd.Flags().String("proxy", "",
		"Route the request through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")

	return cmd
}

// runInspectCmd executes the inspect command.
func runInspectCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var opts inspectOptions
	var err error
	if opts.text, err = flags.GetBool("text"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.save, err = flags.GetBool("save"); err != nil {
		return err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return err
	}
	pairs, err := flags.GetStringArray("header")
	if err != nil {
		return err
	}
	if cfg.Headers, err = config.ParseHeaders(pairs); err != nil {
		return err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("configuration error: %w", config.ErrInvalidTimeout)
	}
	cfg.Seeds = args
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return err
	}

	logger, closer, err := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getStringFlag(cmd, "log-file"), cfg.SensitiveHeaderNames()...)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	client, stop, err := newHTTPClient(commandContext(cmd), cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stop()

	fetcher := fetch.NewHTTPFetcher(client, fetch.WithTimeout(cfg.Timeout))
	return runInspect(commandContext(cmd), cfg, fetcher, opts, logger, cmd.OutOrStdout())
}

// inspection is the JSON shape of inspect's output.
type inspection struct {
	URL      string              `json:"url"`
	Title    string              `json:"title"`
	Language string              `json:"language,omitempty"`
	Links    []model.LinkRecord  `json:"links"`
	Images   []model.ImageRecord `json:"images"`
	Text     string              `json:"text,omitempty"`
	Markdown string              `json:"markdown,omitempty"`
	SavedTo  string              `json:"saved_to,omitempty"`
}

// runInspect fetches and extracts one page and prints the result.
func runInspect(ctx context.Context, cfg *config.Config, fetcher fetch.Fetcher, opts inspectOptions, logger *slog.Logger, out io.Writer) error {
	pageURL := cfg.Seeds[0]
	settings, err := cfg.ForSeed(pageURL)
	if err != nil {
		return err
	}

	logger.Info("inspecting page", "url", pageURL)
	content, err := fetcher.Fetch(ctx, pageURL, settings.Headers)
	if err != nil {
		return err
	}

	result, err := extract.New().Extract(pageURL, content)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", pageURL, err)
	}

	text := extract.Text(content)
	view := inspection{
		URL:      pageURL,
		Title:    result.Title,
		Language: extract.Language(text),
		Links:    result.Links,
		Images:   result.Images,
	}
	if opts.text {
		view.Text = text
	}
	if opts.markdown {
		if view.Markdown, err = extract.Markdown(content); err != nil {
			return fmt.Errorf("failed to convert %s to Markdown: %w", pageURL, err)
		}
	}
	if opts.save {
		record := model.NewPageRecord(pageURL, content, settings.Headers["User-Agent"], time.Now())
		if view.SavedTo, err = storage.NewWriter(cfg.OutputDir).Save(record); err != nil {
			return err
		}
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(view)
	}
	writeInspection(out, &view)
	return nil
}

// writeInspection prints an inspection in human-readable form.
func writeInspection(out io.Writer, v *inspection) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "URL:      %s\n", v.URL)
	fmt.Fprintf(&sb, "Title:    %s\n", v.Title)
	if v.Language != "" {
		fmt.Fprintf(&sb, "Language: %s\n", v.Language)
	}
	if v.SavedTo != "" {
		fmt.Fprintf(&sb, "Saved to: %s\n", v.SavedTo)
	}

	fmt.Fprintf(&sb, "\nLinks (%d):\n", len(v.Links))
	for i, l := range v.Links {
		fmt.Fprintf(&sb, "  %3d. %s\n", i+1, l.URL)
		if l.Text != "" {
			fmt.Fprintf(&sb, "       text:    %s\n", l.Text)
		}
		if l.Context != "" && l.Context != l.Text {
			fmt.Fprintf(&sb, "       context: %s\n", truncate(l.Context, 120))
		}
	}

	fmt.Fprintf(&sb, "\nImages (%d):\n", len(v.Images))
	for i, img := range v.Images {
		fmt.Fprintf(&sb, "  %3d. %s\n", i+1, img.Source)
		if img.Alt != "" {
			fmt.Fprintf(&sb, "       alt:   %s\n", img.Alt)
		}
		if img.Title != "" {
			fmt.Fprintf(&sb, "       title: %s\n", img.Title)
		}
	}

	if v.Text != "" {
		sb.WriteString("\nText:\n")
		sb.WriteString(v.Text)
		sb.WriteString("\n")
	}
	if v.Markdown != "" {
		sb.WriteString("\nMarkdown:\n")
		sb.WriteString(v.Markdown)
		sb.WriteString("\n")
	}

	_, _ = io.WriteString(out, sb.String()) //nolint:errcheck // terminal output
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
