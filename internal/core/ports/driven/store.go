package driven

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// ChunkStore persists chunks partitioned by (company, model).
// Every method returns an error wrapping domain.ErrStoreUnavailable when the
// backing store cannot be reached, never an empty result.
type ChunkStore interface {
	// StoreChunks appends chunks atomically, stamping storedAt and version.
	StoreChunks(ctx context.Context, company, model string, chunks []domain.Chunk) (int, error)

	// GetChunks returns the model's records matching filter, in storage order.
	GetChunks(ctx context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error)

	// GetComplianceSummary aggregates the model's records.
	// Returns domain.ErrNotFound when the model has no records.
	GetComplianceSummary(ctx context.Context, company, model string) (*domain.ComplianceSummary, error)

	// DeleteModelData purges the model's collection and returns the count removed.
	DeleteModelData(ctx context.Context, company, model string) (int, error)

	// GetStats enumerates every namespace and collection.
	GetStats(ctx context.Context) (*domain.StoreStats, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorSearcher is implemented by stores with native similarity search.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, company, model string, query []float32, k int) ([]domain.ScoredChunk, error)
}

// FailureLog is an append-only sink for failure records.
type FailureLog interface {
	// AppendFailure records one failure.
	AppendFailure(ctx context.Context, rec domain.FailureRecord) error

	// QueryFailures returns matching records, newest first.
	QueryFailures(ctx context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error)
}
