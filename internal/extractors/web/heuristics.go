package web

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinBodyBytes is the body size below which a fast-path response is
// treated as a client-rendered shell.
const MinBodyBytes = 1000

var redirectMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']?refresh`),
	regexp.MustCompile(`(?i)window\.location(\.href)?\s*=`),
	regexp.MustCompile(`(?i)location\.replace\s*\(`),
}

// RenderReason reports why body needs the JS-capable fetch path, or ""
// when the fast-path content is usable.
func RenderReason(body []byte) string {
	if len(bytes.TrimSpace(body)) < MinBodyBytes {
		return "small body"
	}
	for _, re := range redirectMarkers {
		if re.Match(body) {
			return "client-side redirect"
		}
	}
	if scriptOnly(body) {
		return "script-only body"
	}
	return ""
}

// NeedsRender reports whether body should be re-fetched with rendering.
func NeedsRender(body []byte) bool {
	return RenderReason(body) != ""
}

// scriptOnly reports whether the page carries scripts but no visible text.
func scriptOnly(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find("script").Length() == 0 {
		return false
	}
	b := doc.Find("body").Clone()
	b.Find("script, style, noscript, template").Remove()
	return strings.TrimSpace(b.Text()) == ""
}
