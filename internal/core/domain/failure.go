package domain

import (
	"strings"
	"time"
)

// FailureRecord describes a source that failed end-to-end.
// Records are append-only.
type FailureRecord struct {
	ID           string    `json:"id"`
	RunID        string    `json:"runId,omitempty"`
	URL          string    `json:"url"`
	Company      string    `json:"company"`
	Model        string    `json:"model"`
	DocumentType string    `json:"documentType"`
	Error        string    `json:"error"`
	ErrorCode    string    `json:"errorCode"`
	Retryable    bool      `json:"retryable"`
	Timestamp    time.Time `json:"timestamp"`
}

// FailureQuery selects failure records. Zero values match everything.
type FailureQuery struct {
	URL     string
	Company string
	Model   string
	Limit   int
}

// Matches reports whether a record passes the query.
func (q FailureQuery) Matches(r *FailureRecord) bool {
	if q.URL != "" && q.URL != r.URL {
		return false
	}
	if q.Company != "" && !strings.EqualFold(q.Company, r.Company) {
		return false
	}
	if q.Model != "" && NormalizeName(q.Model) != NormalizeName(r.Model) {
		return false
	}
	return true
}
