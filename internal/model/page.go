package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageRecord represents one fetched page together with its access metadata.
// A record is created once per successful fetch and is not modified afterwards.
//
// The JSON field names are part of the on-disk format and must not change.
type PageRecord struct {
	// URL is the address the content was fetched from.
	URL string `json:"url"`

	// DateAccessed is the time the page was fetched.
	// It is serialized as an ISO-8601 timestamp.
	DateAccessed time.Time `json:"date_accessed"`

	// BrowserAgent is the User-Agent sent with the request.
	// Nil when the request carried no User-Agent header, which serializes as null.
	BrowserAgent *string `json:"browser_agent"`

	// Content is the raw response body as text.
	Content string `json:"content"`
}

// NewPageRecord creates a PageRecord stamped with the given access time.
// An empty userAgent yields a record whose BrowserAgent is nil.
func NewPageRecord(url, content, userAgent string, accessed time.Time) *PageRecord {
	rec := &PageRecord{
		URL:          url,
		DateAccessed: accessed,
		Content:      content,
	}
	if userAgent != "" {
		ua := userAgent
		rec.BrowserAgent = &ua
	}
	return rec
}

// Hash returns the hex encoded SHA-256 of the content.
// Returns an empty string for empty content.
func (p *PageRecord) Hash() string {
	if p.Content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.Content))
	return hex.EncodeToString(sum[:])
}

// LinkRecord is an anchor discovered on a page.
type LinkRecord struct {
	// URL is the href, resolved against the page URL.
	URL string `json:"url"`

	// Text is the anchor's own text with surrounding whitespace removed.
	Text string `json:"text"`

	// Context is the text of the anchor's parent element.
	Context string `json:"context"`
}

// ImageRecord is an <img> element discovered on a page.
// Missing attributes are represented by empty strings.
type ImageRecord struct {
	Source string `json:"src"`
	Alt    string `json:"alt"`
	Title  string `json:"title"`
}
