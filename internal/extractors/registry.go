package extractors

import (
	"sort"
	"sync"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps formats to extractors.
// Lookups for an unregistered format fall back to the web extractor.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.Format]driven.Extractor
}

// NewRegistry creates a registry holding the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{
		extractors: make(map[domain.Format]driven.Extractor),
	}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor, replacing any existing one for its format.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Format()] = e
}

// For returns the extractor for f. Unknown or unregistered formats use the
// web extractor; nil is returned only if no web extractor is registered.
func (r *Registry) For(f domain.Format) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.extractors[f]; ok {
		return e
	}
	if f != domain.FormatWeb {
		logger.Debug("no extractor for format %q, falling back to web", f)
	}
	return r.extractors[domain.FormatWeb]
}

// Has returns true if an extractor is registered for f.
func (r *Registry) Has(f domain.Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[f]
	return ok
}

// Formats returns the registered formats, sorted.
func (r *Registry) Formats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Format, 0, len(r.extractors))
	for f := range r.extractors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
