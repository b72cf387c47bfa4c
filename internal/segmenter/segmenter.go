// Package segmenter splits document text into sentence-preserving,
// overlapping chunks.
package segmenter

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// DefaultMaxChunkSize is the default number of characters per chunk.
const DefaultMaxChunkSize = domain.DefaultMaxChunkSize

// DefaultOverlapSize is the default number of characters carried between chunks.
const DefaultOverlapSize = domain.DefaultOverlapSize

// Segmenter accumulates sentences into chunks of at most maxChunkSize
// characters, seeding each chunk after the first with trailing words of
// the previous one.
type Segmenter struct {
	maxChunkSize int
	overlapSize  int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithMaxChunkSize sets the chunk size in characters.
func WithMaxChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.maxChunkSize = size
		}
	}
}

// WithOverlapSize sets the overlap between chunks in characters.
func WithOverlapSize(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlapSize = overlap
		}
	}
}

// New creates a segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		maxChunkSize: DefaultMaxChunkSize,
		overlapSize:  DefaultOverlapSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content
	if s.overlapSize >= s.maxChunkSize {
		s.overlapSize = s.maxChunkSize / 4
	}

	return s
}

// MaxChunkSize returns the configured chunk bound.
func (s *Segmenter) MaxChunkSize() int { return s.maxChunkSize }

// OverlapSize returns the configured overlap bound.
func (s *Segmenter) OverlapSize() int { return s.overlapSize }

// Segment splits text into chunks that inherit base.
// A sentence longer than the chunk bound becomes its own chunk, untruncated.
func (s *Segmenter) Segment(text string, base domain.ChunkMetadata) []domain.Chunk {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks  []domain.Chunk
		buf     strings.Builder
		size    int
		overlap int
	)

	flush := func() {
		c := domain.NewChunk(buf.String(), base, len(chunks))
		c.Metadata.OverlapChars = overlap
		chunks = append(chunks, c)
	}

	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+1+n > s.maxChunkSize {
			flush()
			carry := trailingWords(buf.String(), s.overlapSize-1)
			buf.Reset()
			size, overlap = 0, 0
			if carry != "" {
				buf.WriteString(carry)
				buf.WriteByte(' ')
				overlap = utf8.RuneCountInString(carry) + 1
				size = overlap
			}
			buf.WriteString(sentence)
			size += n
			continue
		}
		if size > 0 {
			buf.WriteByte(' ')
			size++
		}
		buf.WriteString(sentence)
		size += n
	}
	if size > overlap {
		flush()
	}

	domain.FinalizeChunks(chunks)
	return chunks
}

// SplitSentences normalises whitespace and splits text after '.', '!' or '?'
// when followed by whitespace.
func SplitSentences(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		sentences []string
		start     int
	)
	for i, w := range words {
		switch w[len(w)-1] {
		case '.', '!', '?':
			sentences = append(sentences, strings.Join(words[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(words) {
		sentences = append(sentences, strings.Join(words[start:], " "))
	}
	return sentences
}

// trailingWords returns the longest suffix of whole words of text whose
// length in characters does not exceed limit.
func trailingWords(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	words := strings.Fields(text)
	n := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := utf8.RuneCountInString(words[i])
		if n > 0 {
			add++
		}
		if n+add > limit {
			break
		}
		n += add
		start = i
	}
	return strings.Join(words[start:], " ")
}

// NewContent returns the part of a chunk's text that was not carried over
// from the previous chunk.
func NewContent(c domain.Chunk) string {
	text := c.Text
	for i := 0; i < c.Metadata.OverlapChars; i++ {
		if text == "" {
			return ""
		}
		_, w := utf8.DecodeRuneInString(text)
		text = text[w:]
	}
	return text
}
