package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/net/html"
)

// ErrInvalidPageURL is wrapped by Extract when the page URL cannot be parsed.
var ErrInvalidPageURL = errors.New("invalid page URL")

// Result holds everything extracted from one page.
type Result struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are the page's anchors in document order.
	Links []model.LinkRecord

	// Images are the page's <img> elements in document order.
	Images []model.ImageRecord
}

// LinkURLs returns the URL of every link in order.
func (r *Result) LinkURLs() []string {
	urls := make([]string, 0, len(r.Links))
	for _, l := range r.Links {
		urls = append(urls, l.URL)
	}
	return urls
}

// Extractor turns raw HTML into links and images.
type Extractor interface {
	Extract(pageURL, content string) (*Result, error)
}

// HTMLExtractor is the default Extractor.
type HTMLExtractor struct{}

// New creates an HTMLExtractor.
func New() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract implements Extractor.
//
// Link URLs are resolved against the page URL, or against the document's
// <base href> when present, and have their fragment removed. Anchors whose
// href is empty, a bare "#", or uses the javascript:, mailto:, tel: or data:
// schemes are skipped. Image sources are resolved the same way; alt and title
// are kept verbatim.
func (e *HTMLExtractor) Extract(pageURL, content string) (*Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPageURL, err) //nolint:errorlint // sentinel is the identity
	}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	result := &Result{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Links:  make([]model.LinkRecord, 0),
		Images: make([]model.ImageRecord, 0),
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveLink(base, href)
		if resolved == "" {
			return
		}
		result.Links = append(result.Links, model.LinkRecord{
			URL:     resolved,
			Text:    collapseSpace(s.Text()),
			Context: collapseSpace(s.Parent().Text()),
		})
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		title, _ := s.Attr("title")
		result.Images = append(result.Images, model.ImageRecord{
			Source: resolveSource(base, src),
			Alt:    alt,
			Title:  title,
		})
	})

	return result, nil
}

// skippedSchemes are href prefixes that never point at a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// resolveLink returns href as an absolute URL without fragment, or "" when the
// href should not be followed. An empty path on a host becomes "/".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Host != "" && resolved.Path == "" && resolved.RawPath == "" {
		resolved.Path = "/"
	}
	return resolved.String()
}

// resolveSource resolves an image src. Unparsable or empty values are kept as is.
func resolveSource(base *url.URL, src string) string {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" || strings.HasPrefix(strings.ToLower(trimmed), "data:") {
		return trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	return base.ResolveReference(u).String()
}

// collapseSpace trims s and replaces every whitespace run with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
