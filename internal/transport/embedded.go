package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds the bootstrap of an embedded Tor daemon.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago so a crawl can reach
// .onion seeds without a system Tor. Bootstrapping takes one to three
// minutes while Tor builds its first circuits.
type EmbeddedTor struct {
	startupTimeout time.Duration

	mu      sync.Mutex
	process *tornago.TorProcess
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout bounds the bootstrap. Non-positive values are ignored.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a stopped daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultTorStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type startResult struct {
	process *tornago.TorProcess
	err     error
}

// Start launches the daemon on OS-assigned ports and waits for it to
// bootstrap. If ctx ends first, Start returns ctx.Err() and the daemon is
// stopped as soon as its launch completes.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	e.mu.Lock()
	running := e.process != nil
	e.mu.Unlock()
	if running {
		return nil
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	done := make(chan startResult, 1)
	go func() {
		p, err := tornago.StartTorDaemon(launchCfg)
		done <- startResult{process: p, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", res.err)
		}
		e.mu.Lock()
		e.process = res.process
		e.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = res.process.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. Stopping a stopped daemon is a no-op.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	p := e.process
	e.process = nil
	e.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Stop()
}

// IsRunning reports whether Start succeeded and Stop was not called since.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when it is stopped.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.process == nil {
		return ""
	}
	return e.process.SocksAddr()
}

// NewHTTPClient returns a client whose connections go through the daemon.
func (e *EmbeddedTor) NewHTTPClient(opts Options) (*http.Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrTorNotRunning
	}
	opts.ProxyAddress = addr
	return NewHTTPClient(opts)
}
