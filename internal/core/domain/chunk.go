package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SchemaVersion is stamped on every stored record.
const SchemaVersion = "1.0"

// ParsingStatus describes how a chunk's text was obtained.
type ParsingStatus string

// Parsing statuses.
const (
	// ParsingOK means the text was extracted from the document.
	ParsingOK ParsingStatus = "success"

	// ParsingNotFound marks a placeholder for a missing document.
	ParsingNotFound ParsingStatus = "not_found"

	// ParsingPending marks a placeholder for a document whose parser is unavailable.
	ParsingPending ParsingStatus = "pending"

	// ParsingFailed marks a placeholder for a document that could not be fetched.
	ParsingFailed ParsingStatus = "fetch_failed"
)

// IsPlaceholder returns true for statuses that never carry real content.
func (p ParsingStatus) IsPlaceholder() bool {
	return p == ParsingNotFound || p == ParsingPending || p == ParsingFailed
}

// ChunkMetadata is the citation record carried by every chunk.
type ChunkMetadata struct {
	SourceID         string   `json:"sourceId"`
	SourceURL        string   `json:"sourceUrl"`
	DocumentType     string   `json:"documentType"`
	Company          string   `json:"company"`
	Model            string   `json:"model"`
	Format           Format   `json:"format"`
	PolicyCategories []string `json:"policyCategories"`
	Priority         int      `json:"priority,omitempty"`

	ChunkIndex  int `json:"chunkIndex"`
	TotalChunks int `json:"totalChunks"`
	CharCount   int `json:"charCount"`
	WordCount   int `json:"wordCount"`

	// OverlapChars is the length of the prefix carried over from the previous chunk.
	OverlapChars int `json:"overlapChars,omitempty"`

	// Format-specific extras.
	PageNumber    int           `json:"pageNumber,omitempty"`
	EstimatedPage bool          `json:"estimatedPage,omitempty"`
	TotalPages    int           `json:"totalPages,omitempty"`
	Title         string        `json:"title,omitempty"`
	Authors       []string      `json:"authors,omitempty"`
	Section       string        `json:"section,omitempty"`
	ParsingStatus ParsingStatus `json:"parsingStatus,omitempty"`

	// EmbeddingGenerated is false when the embedding for this chunk failed.
	EmbeddingGenerated bool `json:"embeddingGenerated"`
}

// HasCategory reports whether the chunk is tagged with any of the categories.
func (m *ChunkMetadata) HasCategory(categories ...string) bool {
	for _, want := range categories {
		for _, have := range m.PolicyCategories {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Chunk is a bounded segment of document text with provenance.
type Chunk struct {
	// ID is "<sourceId>_chunk_<index>".
	ID string `json:"id"`

	// Text is never empty.
	Text string `json:"text"`

	// Embedding is nil when embeddings are disabled or failed.
	Embedding []float32 `json:"embedding,omitempty"`

	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkID builds the identifier for chunk index i of a source.
func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceID, index)
}

// HasEmbedding returns true if the chunk carries a vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// NewChunk builds a chunk from text and inherited metadata.
// Counts are derived from the text; TotalChunks is left for the caller.
func NewChunk(text string, base ChunkMetadata, index int) Chunk {
	meta := base
	meta.PolicyCategories = append([]string(nil), base.PolicyCategories...)
	meta.Authors = append([]string(nil), base.Authors...)
	meta.ChunkIndex = index
	meta.CharCount = utf8.RuneCountInString(text)
	meta.WordCount = len(strings.Fields(text))
	return Chunk{
		ID:       ChunkID(base.SourceID, index),
		Text:     text,
		Metadata: meta,
	}
}

// FinalizeChunks stamps totalChunks on every chunk once the list is complete.
func FinalizeChunks(chunks []Chunk) {
	for i := range chunks {
		chunks[i].Metadata.TotalChunks = len(chunks)
	}
}

// StoredRecord is a chunk as persisted in a per-model collection.
type StoredRecord struct {
	Chunk

	// Namespace is the normalised company name.
	Namespace string `json:"namespace"`

	// Collection is the normalised model name with the "_chunks" suffix.
	Collection string `json:"collection"`

	StoredAt time.Time `json:"storedAt"`
	Version  string    `json:"version"`
}
