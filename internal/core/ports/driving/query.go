package driving

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// QueryService is the read surface consumed by the audit engine.
type QueryService interface {
	// GetChunks returns every record matching filter.
	GetChunks(ctx context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error)

	// GetChunksByCategories returns records tagged with any of the categories.
	GetChunksByCategories(ctx context.Context, company, model string, categories []string) ([]domain.StoredRecord, error)

	// SearchChunksByText returns records whose text contains query.
	SearchChunksByText(ctx context.Context, company, model, query string, limit int) ([]domain.StoredRecord, error)

	// SemanticSearch ranks records by embedding similarity to query.
	SemanticSearch(ctx context.Context, company, model, query string, k int) ([]domain.ScoredChunk, error)

	// GetComplianceSummary aggregates a model's records.
	GetComplianceSummary(ctx context.Context, company, model string) (*domain.ComplianceSummary, error)

	// GetStats enumerates all collections.
	GetStats(ctx context.Context) (*domain.StoreStats, error)

	// DeleteModelData purges a model.
	DeleteModelData(ctx context.Context, company, model string) (int, error)

	// Failures queries the failure log.
	Failures(ctx context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error)

	// Health checks the store and embedder and counts chunks per model.
	Health(ctx context.Context, models []domain.ModelKey) (*HealthReport, error)
}

// ModelHealth reports chunk availability for one model.
type ModelHealth struct {
	Key    domain.ModelKey
	Chunks int
}

// HealthReport is the outcome of a health check.
type HealthReport struct {
	StoreErr     error
	EmbeddingErr error
	Models       []ModelHealth
	TotalChunks  int
}

// Healthy returns true if every dependency responded.
func (r *HealthReport) Healthy() bool {
	return r.StoreErr == nil && r.EmbeddingErr == nil
}
