package domain

// ExtractKind distinguishes real content from a placeholder.
type ExtractKind int

// Extract result kinds.
const (
	// ExtractChunks means real content was segmented into chunks.
	ExtractChunks ExtractKind = iota

	// ExtractPlaceholder means extraction degraded to one explanatory chunk.
	ExtractPlaceholder
)

// String returns the string representation.
func (k ExtractKind) String() string {
	if k == ExtractPlaceholder {
		return "placeholder"
	}
	return "chunks"
}

// ExtractResult is the successful outcome of an extractor.
// Genuine failures are returned as errors instead.
type ExtractResult struct {
	Kind   ExtractKind
	Chunks []Chunk

	// Reason explains a placeholder.
	Reason string
}

// ChunksResult wraps finalised chunks.
func ChunksResult(chunks []Chunk) ExtractResult {
	return ExtractResult{Kind: ExtractChunks, Chunks: chunks}
}

// PlaceholderResult builds the single-chunk result used when content cannot be
// extracted but the source should not fail.
func PlaceholderResult(base ChunkMetadata, status ParsingStatus, reason, text string) ExtractResult {
	base.ParsingStatus = status
	c := NewChunk(text, base, 0)
	chunks := []Chunk{c}
	FinalizeChunks(chunks)
	return ExtractResult{Kind: ExtractPlaceholder, Chunks: chunks, Reason: reason}
}

// IsPlaceholder returns true for degraded results.
func (r ExtractResult) IsPlaceholder() bool {
	return r.Kind == ExtractPlaceholder
}
