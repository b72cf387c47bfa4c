// Package embedding provides the pipeline's embedding generator.
//
// The generator wraps one backend, loads it on first use and shares a
// bounded worker pool between every caller in the process.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure Generator implements the interface.
var _ driven.Embedder = (*Generator)(nil)

// Defaults for the worker pool and request batching.
const (
	DefaultWorkers   = 4
	DefaultBatchSize = 32
)

// Loader creates the backend. It is called at most once.
type Loader func(ctx context.Context) (driven.EmbeddingService, error)

// Generator embeds text through a lazily loaded backend.
type Generator struct {
	load      Loader
	name      string
	batchSize int
	workers   int64
	sem       *semaphore.Weighted

	once  sync.Once
	ready atomic.Bool
	svc   driven.EmbeddingService
	err   error
}

// Option configures a Generator.
type Option func(*Generator)

// WithWorkers bounds concurrent backend calls.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = int64(n)
		}
	}
}

// WithBatchSize sets the number of texts per backend batch call.
func WithBatchSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithModelName sets the name reported before the backend is loaded.
func WithModelName(name string) Option {
	return func(g *Generator) {
		g.name = name
	}
}

// New creates a generator that loads its backend on first use.
func New(load Loader, opts ...Option) *Generator {
	g := &Generator{
		load:      load,
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.sem = semaphore.NewWeighted(g.workers)
	return g
}

// NewFromService wraps an already created backend.
func NewFromService(svc driven.EmbeddingService, opts ...Option) *Generator {
	return New(func(context.Context) (driven.EmbeddingService, error) { return svc, nil }, opts...)
}

// service returns the backend, loading it on the first call. Concurrent
// first callers block until the single load finishes.
func (g *Generator) service(ctx context.Context) (driven.EmbeddingService, error) {
	g.once.Do(func() {
		defer g.ready.Store(true)
		// The load outlives the first caller's cancellation.
		svc, err := g.load(context.WithoutCancel(ctx))
		if err != nil {
			g.err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
			logger.Warn("embedding model failed to load: %v", err)
			return
		}
		g.svc = svc
		logger.Debug("embedding model %s loaded (%d dims)", svc.ModelName(), svc.Dimensions())
	})
	return g.svc, g.err
}

// Load forces the backend to load and reports any failure.
func (g *Generator) Load(ctx context.Context) error {
	_, err := g.service(ctx)
	return err
}

// Embed returns the normalised embedding of text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}
	svc, err := g.service(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	v, err := svc.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// EmbedBatch embeds texts in order. Entries for texts that could not be
// embedded are nil; the call itself never fails.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}
	svc, err := g.service(ctx)
	if err != nil {
		logger.Warn("embedding skipped for %d texts: %v", len(texts), err)
		return out
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		eg.Go(func() error {
			g.embedRange(egCtx, svc, texts, out, start, end)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// embedRange fills out[start:end]. A failed batch call falls back to
// embedding each text on its own.
func (g *Generator) embedRange(ctx context.Context, svc driven.EmbeddingService, texts []string, out [][]float32, start, end int) {
	var idx []int
	var batch []string
	for i := start; i < end; i++ {
		if strings.TrimSpace(texts[i]) != "" {
			idx = append(idx, i)
			batch = append(batch, texts[i])
		}
	}
	if len(batch) == 0 {
		return
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return
	}
	vecs, err := svc.EmbedBatch(ctx, batch)
	g.sem.Release(1)

	if err == nil && len(vecs) == len(batch) {
		for j, i := range idx {
			if len(vecs[j]) > 0 {
				out[i] = Normalize(vecs[j])
			}
		}
		return
	}
	if err != nil {
		logger.Debug("batch embedding failed, retrying %d texts individually: %v", len(batch), err)
	}

	for _, i := range idx {
		if ctx.Err() != nil {
			return
		}
		v, err := g.Embed(ctx, texts[i])
		if err != nil {
			logger.Debug("embedding text %d failed: %v", i, err)
			continue
		}
		out[i] = v
	}
}

// Similarity is the cosine similarity of a and b.
func (g *Generator) Similarity(a, b []float32) (float64, error) {
	return Cosine(a, b)
}

// ModelName returns the backend model name, or the configured name before
// the backend has loaded.
func (g *Generator) ModelName() string {
	if g.ready.Load() && g.svc != nil {
		return g.svc.ModelName()
	}
	return g.name
}

// Dimensions loads the backend and returns its vector size.
func (g *Generator) Dimensions(ctx context.Context) (int, error) {
	svc, err := g.service(ctx)
	if err != nil {
		return 0, err
	}
	return svc.Dimensions(), nil
}

// Ping loads the backend and checks it is reachable.
func (g *Generator) Ping(ctx context.Context) error {
	svc, err := g.service(ctx)
	if err != nil {
		return err
	}
	return svc.Ping(ctx)
}

// Close releases the backend if it was loaded.
func (g *Generator) Close() error {
	if g.ready.Load() && g.svc != nil {
		return g.svc.Close()
	}
	return nil
}
