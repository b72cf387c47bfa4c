// Package postgres provides a PostgreSQL chunk store with pgvector similarity search.
//
// All models share one table keyed by (namespace, collection). Embeddings are
// stored in an unsized vector column so collections built with different
// embedding models can coexist.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

//go:embed schema.sql
var schema string

var (
	_ driven.ChunkStore     = (*Store)(nil)
	_ driven.FailureLog     = (*Store)(nil)
	_ driven.VectorSearcher = (*Store)(nil)
)

// Store is a PostgreSQL-backed chunk store and failure log.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore connects to databaseURL and applies the schema.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: creating connection pool: %w", domain.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrStoreUnavailable, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: applying schema: %w", domain.ErrStoreUnavailable, err)
	}
	return &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// StoreChunks appends chunks in one transaction.
func (s *Store) StoreChunks(ctx context.Context, company, model string, chunks []domain.Chunk) (int, error) {
	key := domain.ModelKey{Company: company, Model: model}
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, unavailable("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	storedAt := s.now()
	batch := &pgx.Batch{}
	for i := range chunks {
		c := &chunks[i]
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata for %s: %w", c.ID, err)
		}
		var vec *pgvector.Vector
		if c.HasEmbedding() {
			v := pgvector.NewVector(c.Embedding)
			vec = &v
		}
		batch.Queue(`
			INSERT INTO sentinel_chunks (namespace, collection, chunk_id, source_id, text, embedding, categories, metadata, stored_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			key.Namespace(), key.Collection(), c.ID, c.Metadata.SourceID, c.Text,
			vec, lowerAll(c.Metadata.PolicyCategories), meta, storedAt, domain.SchemaVersion)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, unavailable("inserting chunk", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, unavailable("closing batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, unavailable("commit", err)
	}
	return len(chunks), nil
}

const selectRecord = `SELECT namespace, collection, chunk_id, text, embedding::text, metadata, stored_at, version`

// GetChunks returns the model's records in insertion order.
func (s *Store) GetChunks(ctx context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	key := domain.ModelKey{Company: company, Model: model}

	query := selectRecord + ` FROM sentinel_chunks WHERE namespace = $1 AND collection = $2`
	args := []any{key.Namespace(), key.Collection()}
	if len(filter.Categories) > 0 {
		args = append(args, lowerAll(filter.Categories))
		query += fmt.Sprintf(` AND categories && $%d`, len(args))
	}
	if filter.Text != "" {
		args = append(args, "%"+escapeLike(filter.Text)+"%")
		query += fmt.Sprintf(` AND text ILIKE $%d`, len(args))
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 && filter.Pattern == "" {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if filter.Pattern == "" {
		return records, nil
	}
	return filter.Apply(records), nil
}

// SearchSimilar ranks the model's embedded records by cosine similarity.
func (s *Store) SearchSimilar(ctx context.Context, company, model string, query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(query) == 0 || k <= 0 {
		return nil, fmt.Errorf("%w: empty query vector or k", domain.ErrInvalidInput)
	}
	key := domain.ModelKey{Company: company, Model: model}
	rows, err := s.pool.Query(ctx, selectRecord+`, 1 - (embedding <=> $3) AS score
		FROM sentinel_chunks
		WHERE namespace = $1 AND collection = $2
		  AND embedding IS NOT NULL AND vector_dims(embedding) = $4
		ORDER BY embedding <=> $3
		LIMIT $5`,
		key.Namespace(), key.Collection(), pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, unavailable("searching chunks", err)
	}
	defer rows.Close()

	var out []domain.ScoredChunk
	for rows.Next() {
		var hit domain.ScoredChunk
		var emb *string
		var meta []byte
		if err := rows.Scan(&hit.Record.Namespace, &hit.Record.Collection, &hit.Record.ID, &hit.Record.Text,
			&emb, &meta, &hit.Record.StoredAt, &hit.Record.Version, &hit.Score); err != nil {
			return nil, unavailable("scanning hit", err)
		}
		if err := decode(&hit.Record, emb, meta); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading hits", err)
	}
	return out, nil
}

// GetComplianceSummary aggregates the model's records.
func (s *Store) GetComplianceSummary(ctx context.Context, company, model string) (*domain.ComplianceSummary, error) {
	records, err := s.GetChunks(ctx, company, model, domain.ChunkFilter{})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no chunks for %s", domain.ErrNotFound, domain.ModelKey{Company: company, Model: model})
	}
	summary := domain.Summarize(company, model, records)
	return &summary, nil
}

// DeleteModelData removes every record of the model.
func (s *Store) DeleteModelData(ctx context.Context, company, model string) (int, error) {
	key := domain.ModelKey{Company: company, Model: model}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sentinel_chunks WHERE namespace = $1 AND collection = $2`,
		key.Namespace(), key.Collection())
	if err != nil {
		return 0, unavailable("deleting chunks", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetStats counts records per namespace and collection.
func (s *Store) GetStats(ctx context.Context) (*domain.StoreStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT namespace, collection, COUNT(*) FROM sentinel_chunks GROUP BY namespace, collection`)
	if err != nil {
		return nil, unavailable("querying stats", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var ns, coll string
		var n int64
		if err := rows.Scan(&ns, &coll, &n); err != nil {
			return nil, unavailable("scanning stats", err)
		}
		if counts[ns] == nil {
			counts[ns] = make(map[string]int)
		}
		counts[ns][coll] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading stats", err)
	}
	stats := domain.BuildStats(counts)
	return &stats, nil
}

// AppendFailure inserts a failure record.
func (s *Store) AppendFailure(ctx context.Context, rec domain.FailureRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: failure record id is required", domain.ErrInvalidInput)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	var runID *string
	if rec.RunID != "" {
		runID = &rec.RunID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sentinel_failures (id, run_id, url, company, model, model_key, document_type, error, error_code, retryable, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, runID, rec.URL, rec.Company, rec.Model, domain.NormalizeName(rec.Model),
		rec.DocumentType, rec.Error, rec.ErrorCode, rec.Retryable, rec.Timestamp)
	if err != nil {
		return unavailable("appending failure", err)
	}
	return nil
}

// QueryFailures returns matching records, newest first.
func (s *Store) QueryFailures(ctx context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error) {
	query := `SELECT id, run_id, url, company, model, document_type, error, error_code, retryable, timestamp
		FROM sentinel_failures WHERE TRUE`
	var args []any
	if q.URL != "" {
		args = append(args, q.URL)
		query += fmt.Sprintf(` AND url = $%d`, len(args))
	}
	if q.Company != "" {
		args = append(args, q.Company)
		query += fmt.Sprintf(` AND lower(company) = lower($%d)`, len(args))
	}
	if q.Model != "" {
		args = append(args, domain.NormalizeName(q.Model))
		query += fmt.Sprintf(` AND model_key = $%d`, len(args))
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("querying failures", err)
	}
	defer rows.Close()

	var out []domain.FailureRecord
	for rows.Next() {
		var rec domain.FailureRecord
		var runID *string
		if err := rows.Scan(&rec.ID, &runID, &rec.URL, &rec.Company, &rec.Model, &rec.DocumentType,
			&rec.Error, &rec.ErrorCode, &rec.Retryable, &rec.Timestamp); err != nil {
			return nil, unavailable("scanning failure", err)
		}
		if runID != nil {
			rec.RunID = *runID
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading failures", err)
	}
	return out, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]domain.StoredRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("querying chunks", err)
	}
	defer rows.Close()

	var records []domain.StoredRecord
	for rows.Next() {
		var rec domain.StoredRecord
		var emb *string
		var meta []byte
		if err := rows.Scan(&rec.Namespace, &rec.Collection, &rec.ID, &rec.Text,
			&emb, &meta, &rec.StoredAt, &rec.Version); err != nil {
			return nil, unavailable("scanning chunk", err)
		}
		if err := decode(&rec, emb, meta); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading chunks", err)
	}
	return records, nil
}

func decode(rec *domain.StoredRecord, emb *string, meta []byte) error {
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return fmt.Errorf("unmarshalling metadata for %s: %w", rec.ID, err)
	}
	if emb != nil {
		var v pgvector.Vector
		if err := v.Scan(*emb); err != nil {
			return fmt.Errorf("decoding embedding for %s: %w", rec.ID, err)
		}
		rec.Embedding = v.Slice()
	}
	rec.StoredAt = rec.StoredAt.UTC()
	return nil
}

// unavailable wraps a database error as a store outage. Context errors
// pass through unchanged.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
