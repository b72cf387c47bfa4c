package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService drives each source through the ingestion state machine:
// Pending, Extracting, Embedding, Storing, then Succeeded or Failed.
type IngestionService struct {
	registry driven.ExtractorRegistry
	embedder driven.Embedder
	store    driven.ChunkStore
	failures driven.FailureLog
	cfg      domain.IngestionSettings

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIngestionService creates an orchestrator.
// embedder, store and failures are optional: without an embedder the
// Embedding stage is skipped, without a store only dry runs are possible,
// and without a failure log failures are reported in the result only.
func NewIngestionService(
	registry driven.ExtractorRegistry,
	embedder driven.Embedder,
	store driven.ChunkStore,
	failures driven.FailureLog,
	cfg domain.IngestionSettings,
) *IngestionService {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	return &IngestionService{
		registry: registry,
		embedder: embedder,
		store:    store,
		failures: failures,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// run holds the state shared by the sources of one Ingest call.
type run struct {
	id      string
	embed   bool
	persist bool
	replace bool

	mu     sync.Mutex
	purged map[string]*purge
}

type purge struct {
	once sync.Once
	err  error
}

// Ingest processes sources in fixed-size batches. Sources within a batch
// run concurrently and the batch settles before the next starts.
func (s *IngestionService) Ingest(ctx context.Context, sources []domain.SourceDescriptor, opts driving.IngestOptions) (*domain.BatchResult, error) {
	r := &run{
		id:      ulid.Make().String(),
		embed:   s.cfg.EnableEmbeddings && !opts.NoEmbed && s.embedder != nil,
		persist: s.cfg.EnableStorage && !opts.DryRun,
		replace: s.cfg.ReplaceExisting || opts.Replace,
		purged:  make(map[string]*purge),
	}

	if r.persist {
		if s.store == nil {
			return nil, fmt.Errorf("%w: no chunk store configured", domain.ErrStoreUnavailable)
		}
		if err := s.store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("store check: %w", err)
		}
	}

	result := &domain.BatchResult{RunID: r.id, StartedAt: s.now()}
	results := make([]domain.SourceResult, len(sources))
	batches := (len(sources) + s.cfg.BatchSize - 1) / s.cfg.BatchSize

	logger.Info("Run %s: %d sources in %d batches (embed=%t, store=%t, replace=%t)",
		r.id, len(sources), batches, r.embed, r.persist, r.replace)

	for b := 0; b < batches; b++ {
		start := b * s.cfg.BatchSize
		end := min(start+s.cfg.BatchSize, len(sources))
		logger.Section(fmt.Sprintf("Batch %d/%d", b+1, batches))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = s.process(ctx, r, sources[i])
				if opts.OnResult != nil {
					opts.OnResult(i, results[i])
				}
				return nil
			})
		}
		_ = g.Wait()

		if b < batches-1 && s.cfg.BatchDelay > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				logger.Warn("Run %s: cancelled between batches", r.id)
			}
		}
	}

	for i := range results {
		result.Add(results[i])
	}
	result.Duration = s.now().Sub(result.StartedAt)

	logger.Info("Run %s: %d/%d succeeded, %d failed, %d placeholders, %d chunks in %s",
		r.id, result.Successful, result.Total, result.Failed, result.Placeholders,
		result.TotalChunks, result.Duration.Round(time.Millisecond))
	return result, nil
}

// process runs one source to a terminal state. It never panics the batch
// and never returns an error: failures are folded into the result.
func (s *IngestionService) process(ctx context.Context, r *run, src domain.SourceDescriptor) (res domain.SourceResult) {
	log := logger.For(src.Company + "/" + src.Model)
	started := s.now()
	res = domain.SourceResult{Source: src, State: domain.StatePending}

	advance := func(next domain.SourceState) {
		log.Debug("%s -> %s %s", res.State, next, src.URL)
		res.State = next
	}
	fail := func(err error) domain.SourceResult {
		res.Error = err.Error()
		res.ErrorCode = domain.ErrorCode(err)
		advance(domain.StateFailed)
		res.Duration = s.now().Sub(started)
		log.Warn("failed (%s): %v", res.ErrorCode, err)
		s.recordFailure(r, src, err)
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res = fail(fmt.Errorf("panic: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := src.Validate(); err != nil {
		return fail(err)
	}

	sctx := ctx
	if s.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
		defer cancel()
	}

	advance(domain.StateExtracting)
	extractor := s.registry.For(src.Format)
	if extractor == nil {
		return fail(fmt.Errorf("%w: no extractor for %s", domain.ErrUnsupportedType, src.Format))
	}
	extracted, err := extractor.Extract(sctx, src.URL, src.BaseMetadata())
	if err != nil {
		return fail(err)
	}
	if len(extracted.Chunks) == 0 {
		return fail(fmt.Errorf("%w: no chunks extracted", domain.ErrParse))
	}
	chunks := extracted.Chunks
	res.Chunks = len(chunks)
	if extracted.IsPlaceholder() {
		res.Placeholder = true
		res.Reason = extracted.Reason
		log.Info("placeholder: %s", extracted.Reason)
	}

	if r.embed && !extracted.IsPlaceholder() {
		advance(domain.StateEmbedding)
		res.Embedded, res.EmbedFailures = s.embed(sctx, chunks)
		if res.EmbedFailures > 0 {
			log.Warn("%d of %d embeddings failed", res.EmbedFailures, len(chunks))
		}
	}

	if r.persist {
		advance(domain.StateStoring)
		if err := s.purgeOnce(sctx, r, src); err != nil {
			return fail(err)
		}
		n, err := s.store.StoreChunks(sctx, src.Company, src.Model, chunks)
		if err != nil {
			return fail(err)
		}
		res.Stored = n
	}

	advance(domain.StateSucceeded)
	res.Duration = s.now().Sub(started)
	log.Info("%d chunks (%d embedded, %d stored) in %s",
		res.Chunks, res.Embedded, res.Stored, res.Duration.Round(time.Millisecond))
	return res
}

// embed fills chunk embeddings in place. Failed texts keep a nil vector.
func (s *IngestionService) embed(ctx context.Context, chunks []domain.Chunk) (ok, failed int) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors := s.embedder.EmbedBatch(ctx, texts)
	for i := range chunks {
		var v []float32
		if i < len(vectors) {
			v = vectors[i]
		}
		chunks[i].Embedding = v
		chunks[i].Metadata.EmbeddingGenerated = v != nil
		if v != nil {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// purgeOnce deletes a model's collection the first time any source of the
// run reaches Storing for it. Later sources of the same model share the outcome.
func (s *IngestionService) purgeOnce(ctx context.Context, r *run, src domain.SourceDescriptor) error {
	if !r.replace {
		return nil
	}
	key := domain.ModelKey{Company: src.Company, Model: src.Model}.String()

	r.mu.Lock()
	p, ok := r.purged[key]
	if !ok {
		p = &purge{}
		r.purged[key] = p
	}
	r.mu.Unlock()

	p.once.Do(func() {
		n, err := s.store.DeleteModelData(ctx, src.Company, src.Model)
		if err != nil {
			p.err = fmt.Errorf("purging %s: %w", key, err)
			return
		}
		logger.Info("Purged %d existing chunks from %s", n, key)
	})
	return p.err
}

func (s *IngestionService) recordFailure(r *run, src domain.SourceDescriptor, cause error) {
	if s.failures == nil {
		return
	}
	rec := domain.FailureRecord{
		ID:           ulid.Make().String(),
		RunID:        r.id,
		URL:          src.URL,
		Company:      src.Company,
		Model:        src.Model,
		DocumentType: src.DocumentType,
		Error:        cause.Error(),
		ErrorCode:    domain.ErrorCode(cause),
		Retryable:    domain.IsRetryable(cause),
		Timestamp:    s.now().UTC(),
	}
	// The failure log must outlive a cancelled run.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.failures.AppendFailure(ctx, rec); err != nil {
		logger.Warn("Recording failure for %s: %v", src.URL, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
