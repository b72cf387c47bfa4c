package extractors

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Pre-compiled regular expressions for text cleanup.
var (
	hyphenBreak   = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)

	codeBlock    = regexp.MustCompile("(?s)```.*?```")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImages     = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote = regexp.MustCompile(`(?m)^>\s*`)
	mdRule       = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdList       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdEmphasis   = regexp.MustCompile(`(\*\*|__|\*)`)
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
)

// asciiReplacer maps common typographic characters onto ASCII.
var asciiReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-", "…", "...", " ", " ",
	"•", "*", "ﬁ", "fi", "ﬂ", "fl",
)

// CleanPDFText repairs line-break hyphenation, drops form feeds and
// collapses whitespace into single spaces.
func CleanPDFText(s string) string {
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	s = strings.ReplaceAll(s, "\f", " ")
	return NormalizeWhitespace(s)
}

// NormalizeWhitespace collapses all runs of whitespace into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ToPrintableASCII folds text to printable ASCII plus newline and tab.
// Accented letters lose their marks; other characters are dropped.
func ToPrintableASCII(s string) string {
	s = asciiReplacer.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= 0x20 && r <= 0x7e) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TidyLines collapses spaces, trims each line and drops blank lines.
func TidyLines(s string) string {
	s = multiSpaces.ReplaceAllString(s, " ")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// StripMarkdown removes common markdown formatting, keeping link text and
// inline code.
func StripMarkdown(s string) string {
	s = codeBlock.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = mdImages.ReplaceAllString(s, "")
	s = mdLinks.ReplaceAllString(s, "$1")
	s = htmlTags.ReplaceAllString(s, "")
	s = mdHeadings.ReplaceAllString(s, "")
	s = mdBlockquote.ReplaceAllString(s, "")
	s = mdRule.ReplaceAllString(s, "")
	s = mdList.ReplaceAllString(s, "")
	s = mdNumbered.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(multiNewlines.ReplaceAllString(s, "\n\n"))
}

// MarkdownTitle returns the first H1 heading, or "".
func MarkdownTitle(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// TitleFromPath derives a readable title from a file name or URL path.
func TitleFromPath(p string) string {
	name := filepath.Base(p)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
