package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/sitecrawl/internal/config"
)

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	for name, def := range map[string]string{
		"output": config.DefaultConfigFile,
		"force":  "false",
		"site":   "[]",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected %s flag", name)
			continue
		}
		if flag.DefValue != def {
			t.Errorf("%s: expected default %q, got %q", name, def, flag.DefValue)
		}
	}
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("template changes nothing", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		out, err := runInit(t, "-o", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, path) {
			t.Errorf("expected output to name the file, got %q", out)
		}

		cf, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("generated file does not load: %v", err)
		}
		if diff := cmp.Diff(config.SiteConfig{}, cf.GetSiteConfig("example.com")); diff != "" {
			t.Errorf("expected empty settings (-want +got):\n%s", diff)
		}
	})

	t.Run("site entries", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "dir", config.DefaultConfigFile)
		_, err := runInit(t, "-o", path, "--site", "https://Docs.Example.com/guide", "--site", "localhost:8080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cf, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("generated file does not load: %v", err)
		}
		want := config.SiteConfig{MaxPages: config.DefaultMaxPages, ScopeMode: "prefix"}
		for _, host := range []string{"docs.example.com", "localhost:8080"} {
			if diff := cmp.Diff(want, cf.GetSiteConfig(host)); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", host, diff)
			}
		}
		if len(cf.Sites) != 2 {
			t.Errorf("expected 2 sites, got %v", cf.Sites)
		}
	})

	t.Run("invalid site", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if _, err := runInit(t, "-o", path, "--site", "example.com/docs"); err == nil {
			t.Error("expected an error for a host with a path")
		}
		if _, err := os.Stat(path); err == nil {
			t.Error("nothing should be written for an invalid site")
		}
	})

	t.Run("existing file needs force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		_, err := runInit(t, "-o", path)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}

		if _, err := runInit(t, "-o", path, "-f"); err != nil {
			t.Fatalf("unexpected error with force: %v", err)
		}
		content, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !bytes.Equal(content, configTemplate) {
			t.Error("expected file to be overwritten with the template")
		}
	})

	t.Run("owner-only permissions", func(t *testing.T) {
		t.Parallel()

		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}

		path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if _, err := runInit(t, "-o", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}
