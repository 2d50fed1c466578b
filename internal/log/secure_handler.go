package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// credentialKeys are attribute keys whose values are always masked. They are
// the request headers a crawl can be configured with plus the usual names
// for secrets.
var credentialKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"jsessionid":          true,
	"sid":                 true,
	"headers":             true,
}

// credentialKeywords mask any key containing them. The bare word "key" is
// not one of them since it also matches "monkey" or "primary_key".
var credentialKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private", "cookie",
}

// queryKeys are URL query parameters whose values are masked while the rest
// of the URL is kept.
var queryKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"sig":           true,
	"signature":     true,
	"password":      true,
	"session":       true,
	"sessionid":     true,
	"sid":           true,
	"auth":          true,
}

// secretValuePatterns mask a whole string value regardless of its key.
var secretValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// userinfoRegex finds "scheme://user:password@" anywhere in a string, such as
// inside an error message that quotes the URL.
var userinfoRegex = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^/@\s:]+:)[^/@\s]+@`)

// SecureHandler wraps an slog.Handler and scrubs credentials from records
// before they reach it.
//
// Values under credential keys are replaced by MaskValue. URLs are kept
// readable: only the password in their userinfo and the values of secret
// query parameters are masked, so page URLs stay useful in crawl logs.
// Error values are scrubbed the same way as strings.
type SecureHandler struct {
	handler slog.Handler

	// extraKeys are lower-cased keys masked in addition to credentialKeys,
	// typically the names of user-configured request headers.
	extraKeys map[string]bool
}

// NewSecureHandler wraps handler. extraKeys are matched case-insensitively.
// A nil handler falls back to slog.Default().Handler().
func NewSecureHandler(handler slog.Handler, extraKeys ...string) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler, extraKeys: make(map[string]bool, len(extraKeys))}
	for _, k := range extraKeys {
		h.extraKeys[strings.ToLower(k)] = true
	}
	return h
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle scrubs the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	scrubbed := slog.NewRecord(r.Time, r.Level, h.scrubText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(h.scrubAttr(a))
		return true
	})
	return h.handler.Handle(ctx, scrubbed)
}

// WithAttrs scrubs attrs before attaching them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.scrubAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(scrubbed), extraKeys: h.extraKeys}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), extraKeys: h.extraKeys}
}

func (h *SecureHandler) scrubAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		scrubbed := make([]slog.Attr, len(group))
		for i, ga := range group {
			scrubbed[i] = h.scrubAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	}

	if h.isCredentialKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if isSecretValue(v) {
			return slog.String(a.Key, MaskValue)
		}
		if s := h.scrubText(v); s != v {
			return slog.String(a.Key, s)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			msg := err.Error()
			if s := h.scrubText(msg); s != msg {
				return slog.String(a.Key, s)
			}
		}
	}
	return a
}

func (h *SecureHandler) isCredentialKey(key string) bool {
	k := strings.ToLower(key)
	if credentialKeys[k] || h.extraKeys[k] {
		return true
	}
	for _, kw := range credentialKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// scrubText masks URL passwords anywhere in s. When s is itself an absolute
// URL, secret query parameter values are masked as well.
func (h *SecureHandler) scrubText(s string) string {
	s = userinfoRegex.ReplaceAllString(s, "${1}"+MaskValue+"@")
	if !strings.Contains(s, "://") || strings.ContainsAny(s, " \t\n") {
		return s
	}
	return scrubURLQuery(s)
}

// scrubURLQuery masks the values of secret query parameters of rawURL.
// rawURL is returned unchanged when it is not a URL or has nothing to mask.
func scrubURLQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	q := u.Query()
	changed := false
	for name := range q {
		if queryKeys[strings.ToLower(name)] {
			q[name] = []string{MaskValue}
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isSecretValue(v string) bool {
	for _, p := range secretValuePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// NewSecureLogger creates a text logger behind a SecureHandler. verbose
// selects Debug instead of Warn.
func NewSecureLogger(w io.Writer, verbose bool, extraKeys ...string) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), extraKeys...))
}
