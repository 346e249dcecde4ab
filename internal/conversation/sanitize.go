package conversation

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const previewRunes = 160

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeHTML strips scripts, handlers and unsafe URLs from an email body.
func SanitizeHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return ugcPolicy.Sanitize(raw)
}

// PlainText drops every tag and collapses whitespace.
func PlainText(raw string) string {
	// Pad tags so adjacent block elements do not run together.
	text := html.UnescapeString(strictPolicy.Sanitize(strings.ReplaceAll(raw, "<", " <")))
	return strings.Join(strings.Fields(text), " ")
}

// Preview shortens body text for list rows, falling back to the HTML part.
func Preview(body, htmlBody string) string {
	text := strings.Join(strings.Fields(body), " ")
	if text == "" && htmlBody != "" {
		text = PlainText(htmlBody)
	}
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:previewRunes-1])) + "…"
}
