package driving

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// IngestOptions overrides configured behaviour for one run.
type IngestOptions struct {
	// DryRun skips the Storing stage.
	DryRun bool

	// NoEmbed skips the Embedding stage.
	NoEmbed bool

	// Replace purges each (company, model) once before storing.
	Replace bool

	// OnResult is called as each source reaches a terminal state.
	// index is the source's position in the input.
	OnResult func(index int, result domain.SourceResult)
}

// IngestionService drives sources through extract, embed and store.
type IngestionService interface {
	// Ingest processes sources in fixed-size concurrent batches.
	// Per-source failures are reported in the result, never returned.
	// An error is returned only when the run cannot start.
	Ingest(ctx context.Context, sources []domain.SourceDescriptor, opts IngestOptions) (*domain.BatchResult, error)
}

// CatalogService exposes the source catalog.
type CatalogService interface {
	// Catalog returns the loaded catalog.
	Catalog(ctx context.Context) (*domain.Catalog, error)

	// Select filters the catalog. It has no side effects.
	Select(ctx context.Context, sel domain.SourceSelection) ([]domain.SourceDescriptor, error)

	// Reload re-reads the catalog, keeping the previous one on error.
	Reload(ctx context.Context) (*domain.Catalog, error)
}
