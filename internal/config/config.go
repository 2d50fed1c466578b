package config

import (
	"fmt"
	"maps"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawl/internal/scope"
)

// Default configuration values.
const (
	// DefaultSeed is crawled when no seed is given on the command line.
	DefaultSeed = "https://example.com"

	// DefaultMaxPages is the page budget of one crawl.
	DefaultMaxPages = 10

	// DefaultOutputDir is the root directory for page records.
	DefaultOutputDir = "saved_pages"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers keeps one fetch in flight, which is a strictly
	// sequential breadth-first crawl.
	DefaultWorkers = 1

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultUserAgent identifies sitecrawl in HTTP requests and is stored as
	// the browser agent of every page record.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for sitecrawl.
// It is populated from CLI flags and passed down explicitly; there is no
// global configuration state.
type Config struct {
	// Seeds are the URLs to crawl. Each seed runs as an independent crawl.
	Seeds []string

	// MaxPages is the page budget per seed.
	MaxPages int

	// OutputDir is the root directory for page records.
	OutputDir string

	// DryRun fetches and traverses without writing page records.
	DryRun bool

	// Timeout bounds every HTTP request.
	Timeout time.Duration

	// UserAgent is sent with every request. Empty means no User-Agent header
	// is set, and records carry a null browser agent.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Zero means the default.
	MaxBodySize int64

	// Workers is the number of fetches in flight per crawl.
	Workers int

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ScopeMode selects how seed and link paths are compared.
	ScopeMode scope.Mode

	// MaxAttempts caps the attempts per failing URL. Zero means no cap.
	MaxAttempts int

	// Headers are extra request headers.
	Headers map[string]string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// DBDir is the directory of the crawl index database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records runs, pages and failures in the crawl index.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogFile additionally writes JSON logs to a rotated file.
	LogFile string

	// JSONReport prints the summary as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the summary as Markdown.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitecrawl is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:          DefaultMaxPages,
		OutputDir:         DefaultOutputDir,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Workers:           DefaultWorkers,
		BatchSize:         DefaultBatchSize,
		ScopeMode:         scope.ModePrefix,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Headers:           map[string]string{},
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}
	if _, err := scope.ParseMode(string(c.ScopeMode)); err != nil {
		return err
	}
	return nil
}

// Crawl is the effective settings for one seed after the site configuration
// has been merged over the command line settings.
type Crawl struct {
	MaxPages       int
	ScopeMode      scope.Mode
	MaxAttempts    int
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

// ForSeed returns the effective crawl settings for seed.
// Site settings override the command line, except that command line headers
// win over headers of the same name from the file.
func (c *Config) ForSeed(seed string) (Crawl, error) {
	var site SiteConfig
	if c.SiteConfigs != nil {
		site = c.SiteConfigs.GetSiteConfig(HostOf(seed))
	}

	out := Crawl{
		MaxPages:       c.MaxPages,
		ScopeMode:      c.ScopeMode,
		MaxAttempts:    c.MaxAttempts,
		Headers:        map[string]string{},
		IgnorePatterns: site.IgnorePatterns,
		FollowPatterns: site.FollowPatterns,
	}
	if site.MaxPages > 0 {
		out.MaxPages = site.MaxPages
	}
	if site.MaxAttempts > 0 {
		out.MaxAttempts = site.MaxAttempts
	}
	if site.ScopeMode != "" {
		mode, err := scope.ParseMode(site.ScopeMode)
		if err != nil {
			return Crawl{}, fmt.Errorf("site %s: %w", HostOf(seed), err)
		}
		out.ScopeMode = mode
	}

	userAgent := c.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}
	if userAgent != "" {
		out.Headers["User-Agent"] = userAgent
	}
	if site.Cookie != "" {
		out.Headers["Cookie"] = site.Cookie
	}
	for k, v := range site.Headers {
		out.Headers[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range c.Headers {
		out.Headers[http.CanonicalHeaderKey(k)] = v
	}
	return out, nil
}

// ParseHeaders parses KEY=VALUE pairs into a header map.
func ParseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, pair)
		}
		headers[http.CanonicalHeaderKey(k)] = strings.TrimSpace(v)
	}
	return headers, nil
}

// SensitiveHeaderNames returns the lower-cased names of configured headers
// whose values must not appear in logs.
func (c *Config) SensitiveHeaderNames() []string {
	all := make(map[string]string, len(c.Headers))
	maps.Copy(all, c.Headers)
	if c.SiteConfigs != nil {
		for _, site := range c.SiteConfigs.Sites {
			maps.Copy(all, site.Headers)
		}
		maps.Copy(all, c.SiteConfigs.Defaults.Headers)
	}

	names := make([]string, 0, len(all))
	for k := range all {
		if k == "" || strings.EqualFold(k, "User-Agent") {
			continue
		}
		names = append(names, strings.ToLower(k))
	}
	return names
}
