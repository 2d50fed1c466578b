package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/sitecrawl/internal/scope"
)

// SiteConfig holds settings for one host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header ("name=value; other=value").
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers for this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// MaxPages overrides the page budget. Zero keeps the global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// ScopeMode is "prefix" or "segment". Empty keeps the global value.
	ScopeMode string `yaml:"scopeMode,omitempty"`

	// MaxAttempts caps attempts per failing URL. Zero keeps the global value.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// IgnorePatterns are glob patterns on the URL path; matching links are skipped.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to links whose path matches one of them.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .sitecrawl configuration file.
type File struct {
	// Sites maps a host (e.g. "example.com" or "localhost:8080") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over the defaults.
// Hosts are matched case-insensitively.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for k, v := range cf.Sites {
			if strings.EqualFold(k, host) {
				siteConfig, ok = v, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.ScopeMode != "" {
		result.ScopeMode = siteConfig.ScopeMode
	}
	if siteConfig.MaxAttempts != 0 {
		result.MaxAttempts = siteConfig.MaxAttempts
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	return result
}

// validate checks the values a crawl cannot run with.
func (cf *File) validate() error {
	check := func(name string, sc SiteConfig) error {
		if sc.MaxPages < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidMaxPages)
		}
		if sc.MaxAttempts < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidMaxAttempts)
		}
		if _, err := scope.ParseMode(sc.ScopeMode); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	if err := check("defaults", cf.Defaults); err != nil {
		return err
	}
	for host, sc := range cf.Sites {
		if err := check("site "+host, sc); err != nil {
			return err
		}
	}
	return nil
}

// HostOf returns the host[:port] of rawURL, or "" when it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
