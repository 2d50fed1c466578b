package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
)

const inspectPage = `<!DOCTYPE html>
<html>
<head><title>Inspect Me</title></head>
<body>
<p>Read the <a href="/guide">installation guide</a> first.</p>
<a href="mailto:team@example.com">Mail</a>
<img src="/img/logo.png" alt="Logo" title="Our logo">
<p>This page exists to test the inspect command of the crawler in English.</p>
</body>
</html>`

func newInspectServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, inspectPage)
	}))
	t.Cleanup(server.Close)
	return server
}

func newInspectConfig(t *testing.T, url string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Seeds = []string{url}
	cfg.OutputDir = t.TempDir()
	cfg.SiteConfigs = &config.File{}
	return cfg
}

// TestNewInspectCmd tests the inspect command creation.
func TestNewInspectCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInspectCmd()
	if cmd.Use != "inspect <url>" {
		t.Errorf("unexpected use %q", cmd.Use)
	}
	for _, name := range []string{"text", "markdown", "json", "save", "output", "header", "user-agent", "timeout", "proxy"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("expected an error without a URL argument")
	}
}

// TestRunInspect tests single page inspection.
func TestRunInspect(t *testing.T) {
	t.Parallel()

	t.Run("text output", func(t *testing.T) {
		t.Parallel()

		server := newInspectServer(t)
		cfg := newInspectConfig(t, server.URL+"/")

		var out strings.Builder
		err := runInspect(context.Background(), cfg, fetch.NewHTTPFetcher(server.Client()), inspectOptions{text: true}, discardLogger(), &out)
		if err != nil {
			t.Fatalf("runInspect() error = %v", err)
		}

		output := out.String()
		for _, want := range []string{
			"Title:    Inspect Me",
			"Links (1):",
			server.URL + "/guide",
			"text:    installation guide",
			"context: Read the installation guide first.",
			"Images (1):",
			server.URL + "/img/logo.png",
			"alt:   Logo",
			"title: Our logo",
			"Text:",
			"This page exists to test the inspect command",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "mailto:") {
			t.Error("mailto links should be skipped")
		}
	})

	t.Run("json output with markdown", func(t *testing.T) {
		t.Parallel()

		server := newInspectServer(t)
		cfg := newInspectConfig(t, server.URL+"/")

		var out strings.Builder
		err := runInspect(context.Background(), cfg, fetch.NewHTTPFetcher(server.Client()), inspectOptions{json: true, markdown: true}, discardLogger(), &out)
		if err != nil {
			t.Fatalf("runInspect() error = %v", err)
		}

		var parsed inspection
		if err := json.Unmarshal([]byte(out.String()), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		wantLinks := []model.LinkRecord{{
			URL:     server.URL + "/guide",
			Text:    "installation guide",
			Context: "Read the installation guide first.",
		}}
		if diff := cmp.Diff(wantLinks, parsed.Links); diff != "" {
			t.Errorf("links mismatch (-want +got):\n%s", diff)
		}
		if parsed.Title != "Inspect Me" || len(parsed.Images) != 1 {
			t.Errorf("unexpected inspection: %+v", parsed)
		}
		if !strings.Contains(parsed.Markdown, "[installation guide]") {
			t.Errorf("expected Markdown link, got %q", parsed.Markdown)
		}
		if parsed.Text != "" {
			t.Error("text should only be included on request")
		}
	})

	t.Run("save writes a page record", func(t *testing.T) {
		t.Parallel()

		server := newInspectServer(t)
		cfg := newInspectConfig(t, server.URL+"/")

		var out strings.Builder
		err := runInspect(context.Background(), cfg, fetch.NewHTTPFetcher(server.Client()), inspectOptions{save: true}, discardLogger(), &out)
		if err != nil {
			t.Fatalf("runInspect() error = %v", err)
		}

		_, after, ok := strings.Cut(out.String(), "Saved to: ")
		if !ok {
			t.Fatalf("expected saved path in output:\n%s", out.String())
		}
		path := strings.TrimSpace(strings.SplitN(after, "\n", 2)[0])
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read record: %v", err)
		}

		var rec model.PageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("record is not valid JSON: %v", err)
		}
		if rec.URL != server.URL+"/" || rec.Content != inspectPage || rec.BrowserAgent == nil || *rec.BrowserAgent != config.DefaultUserAgent {
			t.Errorf("unexpected record: url=%q agent=%v", rec.URL, rec.BrowserAgent)
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		t.Parallel()

		server := newInspectServer(t)
		cfg := newInspectConfig(t, server.URL+"/missing")

		err := runInspect(context.Background(), cfg, fetch.NewHTTPFetcher(server.Client()), inspectOptions{}, discardLogger(), io.Discard)
		var fetchErr *fetch.Error
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 fetch error, got %v", err)
		}
	})
}
