package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 greeting performed by CheckProxy.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the number of redirects a client follows before returning
// the last response.
const maxRedirects = 10

// SOCKS5 greeting bytes.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// Options configures NewHTTPClient.
type Options struct {
	// ProxyAddress routes all connections through a SOCKS5 proxy at "host:port".
	// Empty means connect directly.
	ProxyAddress string

	// Timeout is the client-level timeout for a whole request.
	Timeout time.Duration

	// Headers are set on every outgoing request, including redirects.
	Headers map[string]string
}

// NewHTTPClient creates an HTTP client for fetching pages.
//
// Redirects are limited to maxRedirects to break loops.
func NewHTTPClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 30 * time.Second

	if opts.ProxyAddress != "" {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	var rt http.RoundTripper = transport
	if len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{base: transport, headers: opts.Headers}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// CheckProxy verifies that a SOCKS5 proxy is listening at address and accepts
// unauthenticated clients. It only performs the method negotiation; no
// connection through the proxy is attempted.
func CheckProxy(ctx context.Context, address string) error {
	if !isValidProxyAddress(address) {
		return ErrInvalidProxyAddress
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProxyTimeout
		}
		return fmt.Errorf("%w: %v", ErrProxyCannotConnect, err) //nolint:errorlint // sentinel is the identity
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyCannotConnect, err) //nolint:errorlint // sentinel is the identity
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyCannotConnect, err) //nolint:errorlint // sentinel is the identity
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrProxyTimeout
		}
		return ErrProxyNotSOCKS5
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ErrProxyNotSOCKS5
	}
	return nil
}

// headerInjectingTransport sets fixed headers on every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
// Headers already present on the request win over the injected ones.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
