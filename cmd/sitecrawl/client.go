package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// newHTTPClient builds the client for a command: direct, through a SOCKS5
// proxy, or through an embedded Tor daemon. The returned stop function must
// be called when the client is no longer used; it is never nil.
func newHTTPClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*http.Client, func(), error) {
	opts := transport.Options{Timeout: cfg.Timeout}
	noop := func() {}

	switch {
	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, opts, logger, out)
	case cfg.ProxyAddress != "":
		if err := transport.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				err, cfg.ProxyAddress)
		}
		logger.Info("SOCKS5 proxy verified", "address", cfg.ProxyAddress)
		opts.ProxyAddress = cfg.ProxyAddress
	}

	client, err := transport.NewHTTPClient(opts)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, noop, nil
}

// startEmbeddedTor starts a Tor daemon through tornago and returns a client
// routed through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, opts transport.Options, logger *slog.Logger, out io.Writer) (*http.Client, func(), error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	started := time.Now()
	if err := embedded.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"elapsed", time.Since(started).Round(time.Second),
	)

	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embedded.NewHTTPClient(opts)
	if err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("failed to create Tor client: %w", err)
	}

	fmt.Fprintf(out, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embedded.SocksAddr())
	return client, stop, nil
}

// loadSiteConfigs loads the configuration file.
// If the user explicitly specified a path, a missing file is an error;
// otherwise an empty configuration is used.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		cf, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cf, nil
	case path != "":
		return nil, fmt.Errorf("configuration file not found: %s", path)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}
