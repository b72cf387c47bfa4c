package driven

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// Extractor converts one source format into chunks.
// Every chunk inherits base unchanged apart from per-chunk fields.
type Extractor interface {
	// Format returns the format this extractor handles.
	Format() domain.Format

	// Extract fetches or reads location and returns chunks or a placeholder.
	// Genuine failures (corrupt content, unreachable host) are returned as errors.
	Extract(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error)
}

// ExtractorRegistry dispatches formats to extractors.
type ExtractorRegistry interface {
	// For returns the extractor for f, falling back to the web extractor.
	For(f domain.Format) Extractor

	// Register adds or replaces the extractor for its format.
	Register(e Extractor)
}

// Segmenter splits cleaned text into bounded overlapping chunks.
type Segmenter interface {
	// Segment is deterministic. TotalChunks is stamped on every chunk.
	Segment(text string, base domain.ChunkMetadata) []domain.Chunk
}
