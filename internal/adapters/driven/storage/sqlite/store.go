package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// DatabaseFile is the file name used inside the data directory.
const DatabaseFile = "sentinel.db"

var (
	_ driven.ChunkStore = (*Store)(nil)
	_ driven.FailureLog = (*Store)(nil)
)

// Store is a SQLite-backed chunk store and failure log.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the database in dataDir.
// If dataDir is empty, defaults to ~/.sentinel/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sentinel", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", domain.ErrStoreUnavailable, err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrStoreUnavailable, err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrStoreUnavailable, err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// migrate runs all pending migrations, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Chunk Store ====================

// StoreChunks appends chunks to the model's collection in one transaction.
func (s *Store) StoreChunks(ctx context.Context, company, model string, chunks []domain.Chunk) (int, error) {
	key := domain.ModelKey{Company: company, Model: model}
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (namespace, collection, chunk_id, source_id, text, embedding, categories, metadata, stored_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, unavailable("prepare insert", err)
	}
	defer stmt.Close()

	storedAt := s.now()
	for i := range chunks {
		c := &chunks[i]
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata for %s: %w", c.ID, err)
		}
		catJSON, err := json.Marshal(lowerAll(c.Metadata.PolicyCategories))
		if err != nil {
			return 0, fmt.Errorf("marshalling categories for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			key.Namespace(), key.Collection(), c.ID, c.Metadata.SourceID, c.Text,
			float32SliceToBytes(c.Embedding), string(catJSON), string(metaJSON),
			storedAt, domain.SchemaVersion,
		); err != nil {
			return 0, unavailable("inserting chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable("commit", err)
	}
	return len(chunks), nil
}

// GetChunks returns the model's records in insertion order. Categories are
// filtered in SQL; text and pattern criteria are applied after loading.
func (s *Store) GetChunks(ctx context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	key := domain.ModelKey{Company: company, Model: model}

	query := `
		SELECT namespace, collection, chunk_id, text, embedding, metadata, stored_at, version
		FROM chunks WHERE namespace = ? AND collection = ?`
	args := []any{key.Namespace(), key.Collection()}

	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(c))
		}
		query += ` AND EXISTS (SELECT 1 FROM json_each(chunks.categories) WHERE json_each.value IN (` +
			strings.Join(placeholders, ", ") + `))`
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 && filter.Text == "" && filter.Pattern == "" {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("querying chunks", err)
	}
	defer rows.Close()

	var records []domain.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading chunks", err)
	}

	if filter.Text == "" && filter.Pattern == "" {
		return records, nil
	}
	return filter.Apply(records), nil
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
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE namespace = ? AND collection = ?",
		key.Namespace(), key.Collection())
	if err != nil {
		return 0, unavailable("deleting chunks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("counting deleted chunks", err)
	}
	return int(n), nil
}

// GetStats counts records per namespace and collection.
func (s *Store) GetStats(ctx context.Context) (*domain.StoreStats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT namespace, collection, COUNT(*) FROM chunks GROUP BY namespace, collection")
	if err != nil {
		return nil, unavailable("querying stats", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var ns, coll string
		var n int
		if err := rows.Scan(&ns, &coll, &n); err != nil {
			return nil, unavailable("scanning stats", err)
		}
		if counts[ns] == nil {
			counts[ns] = make(map[string]int)
		}
		counts[ns][coll] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading stats", err)
	}

	stats := domain.BuildStats(counts)
	return &stats, nil
}

// ==================== Failure Log ====================

// AppendFailure inserts a failure record.
func (s *Store) AppendFailure(ctx context.Context, rec domain.FailureRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: failure record id is required", domain.ErrInvalidInput)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (id, run_id, url, company, model, model_key, document_type, error, error_code, retryable, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, nullString(rec.RunID), rec.URL, rec.Company, rec.Model, domain.NormalizeName(rec.Model),
		rec.DocumentType, rec.Error, rec.ErrorCode, rec.Retryable, rec.Timestamp.UTC())
	if err != nil {
		return unavailable("appending failure", err)
	}
	return nil
}

// QueryFailures returns matching records, newest first.
func (s *Store) QueryFailures(ctx context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error) {
	query := `SELECT id, run_id, url, company, model, document_type, error, error_code, retryable, timestamp FROM failures WHERE 1 = 1`
	var args []any
	if q.URL != "" {
		query += " AND url = ?"
		args = append(args, q.URL)
	}
	if q.Company != "" {
		query += " AND company = ? COLLATE NOCASE"
		args = append(args, q.Company)
	}
	if q.Model != "" {
		query += " AND model_key = ?"
		args = append(args, domain.NormalizeName(q.Model))
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("querying failures", err)
	}
	defer rows.Close()

	var out []domain.FailureRecord
	for rows.Next() {
		var rec domain.FailureRecord
		var runID sql.NullString
		if err := rows.Scan(&rec.ID, &runID, &rec.URL, &rec.Company, &rec.Model, &rec.DocumentType,
			&rec.Error, &rec.ErrorCode, &rec.Retryable, &rec.Timestamp); err != nil {
			return nil, unavailable("scanning failure", err)
		}
		rec.RunID = runID.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading failures", err)
	}
	return out, nil
}

// ==================== Helper Functions ====================

// unavailable wraps a database error as a store outage. Context errors
// pass through unchanged.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func scanRecord(rows *sql.Rows) (*domain.StoredRecord, error) {
	var rec domain.StoredRecord
	var embedding []byte
	var metaJSON string
	if err := rows.Scan(&rec.Namespace, &rec.Collection, &rec.ID, &rec.Text, &embedding,
		&metaJSON, &rec.StoredAt, &rec.Version); err != nil {
		return nil, unavailable("scanning chunk", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata for %s: %w", rec.ID, err)
	}
	rec.Embedding = bytesToFloat32Slice(embedding)
	return &rec, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// nullString converts an empty string to sql.NullString.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
