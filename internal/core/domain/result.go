package domain

import "time"

// SourceState is the position of one source in the ingestion state machine.
type SourceState string

// Source states. Succeeded and Failed are terminal.
const (
	StatePending    SourceState = "pending"
	StateExtracting SourceState = "extracting"
	StateEmbedding  SourceState = "embedding"
	StateStoring    SourceState = "storing"
	StateSucceeded  SourceState = "succeeded"
	StateFailed     SourceState = "failed"
)

// IsTerminal returns true for Succeeded and Failed.
func (s SourceState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// String returns the string representation.
func (s SourceState) String() string {
	return string(s)
}

// SourceResult is the outcome of one source.
type SourceResult struct {
	Source SourceDescriptor `json:"source"`
	State  SourceState      `json:"state"`

	// Placeholder is true when the extractor degraded to a placeholder chunk.
	Placeholder bool   `json:"placeholder,omitempty"`
	Reason      string `json:"reason,omitempty"`

	Chunks        int `json:"chunks"`
	Embedded      int `json:"embedded"`
	EmbedFailures int `json:"embedFailures,omitempty"`
	Stored        int `json:"stored"`

	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded returns true if the source reached the Succeeded state.
func (r *SourceResult) Succeeded() bool {
	return r.State == StateSucceeded
}

// SourceError pairs a source with its failure for re-running.
type SourceError struct {
	Source SourceDescriptor `json:"source"`
	Error  string           `json:"error"`
}

// BatchResult aggregates an ingestion run. Sources are in input order.
type BatchResult struct {
	RunID        string         `json:"runId"`
	Total        int            `json:"total"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	Placeholders int            `json:"placeholders"`
	TotalChunks  int            `json:"totalChunks"`
	Errors       []SourceError  `json:"errors"`
	Sources      []SourceResult `json:"sources"`
	StartedAt    time.Time      `json:"startedAt"`
	Duration     time.Duration  `json:"duration"`
}

// Add folds a source result into the aggregate.
func (b *BatchResult) Add(r SourceResult) {
	b.Total++
	b.Sources = append(b.Sources, r)
	if r.Succeeded() {
		b.Successful++
		b.TotalChunks += r.Chunks
		if r.Placeholder {
			b.Placeholders++
		}
		return
	}
	b.Failed++
	b.Errors = append(b.Errors, SourceError{Source: r.Source, Error: r.Error})
}

// FailedSources returns the descriptors of every failed source, for re-runs.
func (b *BatchResult) FailedSources() []SourceDescriptor {
	out := make([]SourceDescriptor, 0, len(b.Errors))
	for _, e := range b.Errors {
		out = append(out, e.Source)
	}
	return out
}
