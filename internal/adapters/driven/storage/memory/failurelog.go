package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// Ensure FailureLog implements the interface.
var _ driven.FailureLog = (*FailureLog)(nil)

// FailureLog is an append-only in-memory failure log.
type FailureLog struct {
	mu      sync.RWMutex
	records []domain.FailureRecord
}

// NewFailureLog creates an empty log.
func NewFailureLog() *FailureLog {
	return &FailureLog{}
}

// AppendFailure records one failure.
func (l *FailureLog) AppendFailure(_ context.Context, rec domain.FailureRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: failure record id is required", domain.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// QueryFailures returns matching records, newest first.
func (l *FailureLog) QueryFailures(_ context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error) {
	l.mu.RLock()
	out := make([]domain.FailureRecord, 0, len(l.records))
	for i := range l.records {
		if q.Matches(&l.records[i]) {
			out = append(out, l.records[i])
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
