package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// pathRules narrows the scope filter with glob patterns on the URL path.
// Ignore patterns win over follow patterns. An empty follow list allows
// everything that is not ignored.
type pathRules struct {
	ignore []string
	follow []string
}

func (r pathRules) allows(rawURL string) bool {
	if len(r.ignore) == 0 && len(r.follow) == 0 {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range r.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(r.follow) == 0 {
		return true
	}
	for _, pattern := range r.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern reports whether path matches a glob pattern.
//
//   - "/admin/*" matches "/admin" and anything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use filepath.Match, and patterns without a "/" are
//     also tried against the last path element
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
