package driven

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// CatalogStore loads the static source catalog.
type CatalogStore interface {
	// Load reads and normalises the catalog.
	Load(ctx context.Context) (*domain.Catalog, error)

	// Path returns the catalog location, or "" for the built-in catalog.
	Path() string
}

// CatalogWatcher notifies when the catalog file changes.
type CatalogWatcher interface {
	// Watch sends on the returned channel after each change until ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
