package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/sitecrawl/internal/log"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getStringFlag retrieves a string flag that may be local or inherited.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates the redacting logger for a command.
// With logFile set, JSON logs are also written to a rotated file. The returned
// closer must be called before the command exits.
func setupLogger(console io.Writer, verbose bool, logFile string, sensitiveKeys ...string) (*slog.Logger, io.Closer, error) {
	if logFile == "" {
		return applog.NewSecureLogger(console, verbose, sensitiveKeys...), nopCloser{}, nil
	}
	return applog.NewFileLogger(console, logFile, verbose, applog.DefaultFileOptions(), sensitiveKeys...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
