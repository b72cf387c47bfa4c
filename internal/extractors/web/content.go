package web

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Denylist lists structural elements removed before text extraction.
var Denylist = []string{
	"script", "style", "noscript", "template", "svg", "iframe", "form", "button",
	"nav", "header", "footer", "aside",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]", "[role=complementary]",
	"[aria-hidden=true]",
	".sidebar", ".navbar", ".nav", ".menu", ".breadcrumb", ".breadcrumbs",
	".toc", ".table-of-contents", ".cookie-banner", "#cookie-banner", ".cookies",
	".advertisement", ".ads", ".social-share", ".share", ".skip-link",
}

// Allowlist lists content containers tried in order.
var Allowlist = []string{
	"main article",
	"article",
	"main",
	"[role=main]",
	"#main-content",
	"#content",
	".main-content",
	".markdown-body",
	".post-content",
	".article-content",
	".prose",
	".content",
}

// minContainerChars is the amount of text a container must hold to be
// chosen over the next candidate.
const minContainerChars = 200

var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// MainContent strips denylisted elements from doc and returns the text of
// the first allowlisted container with enough text, or the whole body.
func MainContent(doc *goquery.Document) (text, container string) {
	doc.Find(strings.Join(Denylist, ", ")).Remove()

	for _, sel := range Allowlist {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if t := Text(s); len(t) >= minContainerChars {
			return t, sel
		}
	}
	return Text(doc.Find("body")), "body"
}

// Text returns the visible text of s with block elements on separate lines.
func Text(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
