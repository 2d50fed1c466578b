// Package transport builds the HTTP clients used to fetch pages.
//
// By default pages are fetched directly. A client can instead route every
// connection through a SOCKS5 proxy, either one that is already running or an
// embedded Tor daemon started through tornago. Extra request headers (for
// example a User-Agent) are injected by a RoundTripper so that redirects carry
// them too.
//
// The package is designed to be used with dependency injection: build a
// client once per command and pass it to the fetcher.
package transport
