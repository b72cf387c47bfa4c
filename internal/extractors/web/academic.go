package web

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Academic holds the fields of an abstract page.
type Academic struct {
	Title    string
	Authors  []string
	Abstract string
}

// IsAcademic reports whether the page is an abstract landing page.
func IsAcademic(location string, doc *goquery.Document) bool {
	if u, err := url.Parse(location); err == nil {
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if host == "arxiv.org" && strings.HasPrefix(u.Path, "/abs/") {
			return true
		}
	}
	return doc.Find(`meta[name="citation_title"]`).Length() > 0
}

// ParseAcademic extracts title, authors and abstract. Highwire citation
// meta tags are preferred; arXiv page markup fills the gaps.
func ParseAcademic(doc *goquery.Document) Academic {
	var a Academic

	a.Title = metaContent(doc, "citation_title")
	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			a.Authors = append(a.Authors, v)
		}
	})
	a.Abstract = metaContent(doc, "citation_abstract")

	if a.Title == "" {
		a.Title = strings.TrimSpace(strings.TrimPrefix(clean(doc.Find("h1.title").First().Text()), "Title:"))
	}
	if len(a.Authors) == 0 {
		doc.Find(".authors a").Each(func(_ int, s *goquery.Selection) {
			if v := clean(s.Text()); v != "" {
				a.Authors = append(a.Authors, v)
			}
		})
	}
	if a.Abstract == "" {
		a.Abstract = strings.TrimSpace(strings.TrimPrefix(clean(doc.Find("blockquote.abstract").First().Text()), "Abstract:"))
	}
	if a.Abstract == "" {
		a.Abstract = metaContent(doc, "description")
	}
	if a.Title == "" {
		a.Title = clean(doc.Find("title").First().Text())
	}
	return a
}

// Text renders the fields as a single document.
func (a Academic) Text() string {
	var parts []string
	if a.Title != "" {
		parts = append(parts, "Title: "+a.Title)
	}
	if len(a.Authors) > 0 {
		parts = append(parts, "Authors: "+strings.Join(a.Authors, ", ")+".")
	}
	if a.Abstract != "" {
		parts = append(parts, "Abstract: "+a.Abstract)
	}
	return strings.Join(parts, "\n")
}

func metaContent(doc *goquery.Document, name string) string {
	return clean(doc.Find(`meta[name="`+name+`"]`).First().AttrOr("content", ""))
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
