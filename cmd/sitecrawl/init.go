package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitecrawl/internal/config"
)

//go:embed templates/sitecrawl.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .sitecrawl configuration file",
		Long: `Init writes a commented .sitecrawl configuration file. Every setting in it
is commented out, so the file changes nothing until it is edited.

Each --site adds an active entry for that host, taken from a URL or given
as host[:port], with the default page budget and prefix scoping filled in.

Examples:
  sitecrawl init
  sitecrawl init --site https://docs.example.com/guide --site localhost:8080
  sitecrawl init -o ~/.sitecrawl -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Path of the file to write")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringArray("site", nil, "Add an entry for this site (URL or host[:port], repeatable)")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	sites, err := cmd.Flags().GetStringArray("site")
	if err != nil {
		return err
	}

	content, err := renderConfig(sites)
	if err != nil {
		return err
	}
	if err := writeConfigFile(path, content, force); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", path)
	if len(sites) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Uncomment and edit the settings you need.")
	}
	return nil
}

// renderConfig appends one active entry per site to the template, whose
// last key is "sites:".
func renderConfig(sites []string) ([]byte, error) {
	if len(sites) == 0 {
		return configTemplate, nil
	}

	entries := make(map[string]config.SiteConfig, len(sites))
	for _, s := range sites {
		host := s
		if strings.Contains(s, "://") {
			host = config.HostOf(s)
		}
		if host == "" || strings.ContainsAny(host, "/ ") {
			return nil, fmt.Errorf("invalid site %q: want a URL or host[:port]", s)
		}
		entries[strings.ToLower(host)] = config.SiteConfig{
			MaxPages:  config.DefaultMaxPages,
			ScopeMode: "prefix",
		}
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to render site entries: %w", err)
	}

	var sb strings.Builder
	sb.Write(configTemplate)
	for line := range strings.Lines(string(data)) {
		sb.WriteString("  ")
		sb.WriteString(line)
	}
	return []byte(sb.String()), nil
}

// writeConfigFile writes content with owner-only permissions since the file
// may hold cookies and tokens.
func writeConfigFile(path string, content []byte, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
