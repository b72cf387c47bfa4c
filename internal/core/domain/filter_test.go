package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(text string, categories ...string) StoredRecord {
	return StoredRecord{Chunk: Chunk{Text: text, Metadata: ChunkMetadata{PolicyCategories: categories}}}
}

// TestChunkFilter tests category, substring and regex criteria
func TestChunkFilter(t *testing.T) {
	records := []StoredRecord{
		record("Red teaming found jailbreaks.", "safety"),
		record("User data is retained for 30 days.", "privacy"),
		record("Bias evaluations on BBQ.", "bias", "safety"),
	}

	t.Run("empty matches all", func(t *testing.T) {
		f := ChunkFilter{}
		require.NoError(t, f.Compile())
		assert.True(t, f.IsEmpty())
		assert.Len(t, f.Apply(records), 3)
	})

	t.Run("categories intersect", func(t *testing.T) {
		f := ChunkFilter{Categories: []string{"safety"}}
		require.NoError(t, f.Compile())
		assert.Len(t, f.Apply(records), 2)
	})

	t.Run("substring case-insensitive", func(t *testing.T) {
		f := ChunkFilter{Text: "RETAINED"}
		require.NoError(t, f.Compile())
		got := f.Apply(records)
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Text, "30 days")
	})

	t.Run("regex", func(t *testing.T) {
		f := ChunkFilter{Pattern: `\b\d+ days\b`}
		require.NoError(t, f.Compile())
		assert.Len(t, f.Apply(records), 1)
	})

	t.Run("limit", func(t *testing.T) {
		f := ChunkFilter{Limit: 1}
		require.NoError(t, f.Compile())
		assert.Len(t, f.Apply(records), 1)
	})

	t.Run("bad regex", func(t *testing.T) {
		f := ChunkFilter{Pattern: "("}
		assert.ErrorIs(t, f.Compile(), ErrInvalidInput)
	})
}
