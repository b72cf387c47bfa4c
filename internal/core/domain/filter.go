package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ChunkFilter narrows GetChunks results. Zero value matches everything.
type ChunkFilter struct {
	// Categories keeps chunks whose policy categories intersect this set.
	Categories []string

	// Text keeps chunks containing this substring (case-insensitive).
	Text string

	// Pattern keeps chunks whose text matches this regular expression.
	Pattern string

	// Limit caps the number of results when > 0.
	Limit int

	re *regexp.Regexp
}

// Compile validates the pattern. It must be called before Match when Pattern is set.
func (f *ChunkFilter) Compile() error {
	if f.Pattern == "" {
		f.re = nil
		return nil
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return fmt.Errorf("%w: pattern: %w", ErrInvalidInput, err)
	}
	f.re = re
	return nil
}

// IsEmpty returns true if the filter matches everything.
func (f *ChunkFilter) IsEmpty() bool {
	return len(f.Categories) == 0 && f.Text == "" && f.Pattern == ""
}

// Match reports whether a chunk passes every criterion.
func (f *ChunkFilter) Match(c *Chunk) bool {
	if len(f.Categories) > 0 && !c.Metadata.HasCategory(f.Categories...) {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(c.Text), strings.ToLower(f.Text)) {
		return false
	}
	if f.re != nil && !f.re.MatchString(c.Text) {
		return false
	}
	return true
}

// Apply filters records in order, honouring Limit.
func (f *ChunkFilter) Apply(records []StoredRecord) []StoredRecord {
	out := make([]StoredRecord, 0, len(records))
	for i := range records {
		if !f.Match(&records[i].Chunk) {
			continue
		}
		out = append(out, records[i])
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// ScoredChunk is a semantic search hit.
type ScoredChunk struct {
	Record StoredRecord `json:"record"`
	Score  float64      `json:"score"`
}
