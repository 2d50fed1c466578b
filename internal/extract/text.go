package extract

import (
	"html"
	"regexp"
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/abadojack/whatlanggo"
	"github.com/microcosm-cc/bluemonday"
)

var (
	repeatedSpaceRegex = regexp.MustCompile(`\s+`)

	// invisibleRegex removes elements whose content is never rendered as text.
	// Each element only ends at its own closing tag.
	invisibleRegex = regexp.MustCompile(`(?is)<script\b.*?</script\s*>|<style\b.*?</style\s*>|<noscript\b.*?</noscript\s*>|<template\b.*?</template\s*>`)
)

// bluemonday policies are not safe for concurrent use.
var policyPool = sync.Pool{
	New: func() any {
		return bluemonday.StrictPolicy()
	},
}

// Text returns the visible text of an HTML document with tags removed and
// whitespace collapsed to single spaces.
func Text(content string) string {
	policy := policyPool.Get().(*bluemonday.Policy) //nolint:forcetypeassert // pool only holds policies
	defer policyPool.Put(policy)

	stripped := policy.Sanitize(invisibleRegex.ReplaceAllString(content, " "))
	return strings.TrimSpace(html.UnescapeString(repeatedSpaceRegex.ReplaceAllString(stripped, " ")))
}

// Markdown converts an HTML document to Markdown.
func Markdown(content string) (string, error) {
	return htmltomarkdown.ConvertString(content)
}

// Language guesses the ISO 639-3 code of text.
// It returns "" when text is empty or the guess is unreliable.
func Language(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
