// Package scope decides which discovered links a crawl may follow.
//
// A crawl's scope is defined by its seed URL: a link is in scope when it
// shares the seed's host and its path begins with the seed's path.
package scope

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects how the path prefix of a candidate is compared with the seed.
type Mode string

const (
	// ModePrefix compares paths as raw strings. A seed path of "/doc" also
	// matches "/document". This is the default.
	ModePrefix Mode = "prefix"

	// ModeSegment compares whole path segments, so "/doc" matches "/doc" and
	// "/doc/page" but not "/document".
	ModeSegment Mode = "segment"
)

// ParseMode converts a configuration string into a Mode.
// An empty string selects ModePrefix.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePrefix:
		return ModePrefix, nil
	case ModeSegment:
		return ModeSegment, nil
	default:
		return "", fmt.Errorf("unknown scope mode %q (want %q or %q)", s, ModePrefix, ModeSegment)
	}
}

// Visited reports whether a URL has already been fetched.
type Visited interface {
	Contains(url string) bool
}

// Eligible reports whether candidate may be enqueued for a crawl rooted at seed.
// It uses ModePrefix. See Filter.Eligible.
func Eligible(candidate, seed string, visited Visited) bool {
	return Filter{Mode: ModePrefix}.Eligible(candidate, seed, visited)
}

// Filter applies the scope rules with a configurable path comparison.
// The zero value uses ModePrefix.
type Filter struct {
	Mode Mode
}

// Eligible reports whether candidate may be enqueued.
//
// A candidate is eligible when its host equals the seed's host exactly (no
// subdomain matching), its path with any trailing slash removed starts with
// the seed's path with any trailing slash removed, and it is not in visited.
// URLs that fail to parse are never eligible. A nil visited set is empty.
func (f Filter) Eligible(candidate, seed string, visited Visited) bool {
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	s, err := url.Parse(seed)
	if err != nil {
		return false
	}

	if c.Host != s.Host {
		return false
	}

	if !f.pathInScope(c.Path, s.Path) {
		return false
	}

	if visited != nil && visited.Contains(candidate) {
		return false
	}
	return true
}

func (f Filter) pathInScope(candidatePath, seedPath string) bool {
	cp := strings.TrimSuffix(candidatePath, "/")
	sp := strings.TrimSuffix(seedPath, "/")

	if f.Mode == ModeSegment {
		if sp == "" {
			return true
		}
		return cp == sp || strings.HasPrefix(cp, sp+"/")
	}
	return strings.HasPrefix(cp, sp)
}
