package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBatchResult_Add tests counters and error pairs
func TestBatchResult_Add(t *testing.T) {
	var b BatchResult

	b.Add(SourceResult{Source: SourceDescriptor{URL: "a"}, State: StateSucceeded, Chunks: 10})
	b.Add(SourceResult{Source: SourceDescriptor{URL: "b"}, State: StateSucceeded, Chunks: 1, Placeholder: true})
	b.Add(SourceResult{Source: SourceDescriptor{URL: "c"}, State: StateFailed, Error: "HTTP 500"})

	assert.Equal(t, 3, b.Total)
	assert.Equal(t, 2, b.Successful)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, 1, b.Placeholders)
	assert.Equal(t, 11, b.TotalChunks)
	require.Len(t, b.Errors, 1)
	assert.Equal(t, "c", b.Errors[0].Source.URL)
	assert.Equal(t, "HTTP 500", b.Errors[0].Error)
	assert.Equal(t, []string{"a", "b", "c"}, []string{b.Sources[0].Source.URL, b.Sources[1].Source.URL, b.Sources[2].Source.URL})
	assert.Len(t, b.FailedSources(), 1)
}

// TestSourceState_IsTerminal tests terminal states
func TestSourceState_IsTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	for _, s := range []SourceState{StatePending, StateExtracting, StateEmbedding, StateStoring} {
		assert.False(t, s.IsTerminal(), s)
	}
}

// TestFailureQuery_Matches tests failure log filtering
func TestFailureQuery_Matches(t *testing.T) {
	r := FailureRecord{URL: "https://x/a.pdf", Company: "OpenAI", Model: "GPT-4"}

	assert.True(t, FailureQuery{}.Matches(&r))
	assert.True(t, FailureQuery{Company: "openai", Model: "gpt 4"}.Matches(&r))
	assert.True(t, FailureQuery{URL: "https://x/a.pdf"}.Matches(&r))
	assert.False(t, FailureQuery{URL: "https://x/b.pdf"}.Matches(&r))
	assert.False(t, FailureQuery{Company: "Anthropic"}.Matches(&r))
}
