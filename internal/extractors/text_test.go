package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPDFText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenation", "the evalu-\nation suite", "the evaluation suite"},
		{"hyphenation with spaces", "red team-  \n  ing results", "red teaming results"},
		{"keeps real hyphens", "GPT-4 is\nlarge", "GPT-4 is large"},
		{"keeps capitalised continuation", "Safety-\nCritical", "Safety- Critical"},
		{"form feeds", "page one\fpage two", "page one page two"},
		{"whitespace", "  a \t b\n\n c  ", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPDFText(tt.in))
		})
	}
}

func TestToPrintableASCII(t *testing.T) {
	assert.Equal(t, `"Quoted" - it's fine...`, ToPrintableASCII("“Quoted” — it’s fine…"))
	assert.Equal(t, "cafe naive", ToPrintableASCII("café naïve"))
	assert.Equal(t, "a\tb\nc", ToPrintableASCII("a\tb\nc\x00\x07"))
	assert.Equal(t, "emoji ", ToPrintableASCII("emoji 🚀"))
}

func TestTidyLines(t *testing.T) {
	assert.Equal(t, "one two\nthree", TidyLines("  one   two \n\n\n\n   three  \n "))
}

func TestStripMarkdown(t *testing.T) {
	in := "# Model Card\n\n**Bold** and *italic* with [a link](https://x.y).\n\n```python\ncode()\n```\n\n- item one\n1. first\n> quote\n\n![img](a.png) `inline`"

	got := StripMarkdown(in)

	assert.Contains(t, got, "Model Card")
	assert.Contains(t, got, "Bold and italic with a link.")
	assert.Contains(t, got, "item one")
	assert.Contains(t, got, "first")
	assert.Contains(t, got, "quote")
	assert.Contains(t, got, "inline")
	assert.NotContains(t, got, "code()")
	assert.NotContains(t, got, "https://x.y")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "img")
}

func TestMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Llama 3", MarkdownTitle("intro\n# Llama 3\n## Sub"))
	assert.Equal(t, "", MarkdownTitle("## Only sub"))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "gpt 4 system card", TitleFromPath("/files/gpt-4_system-card.pdf"))
}
