package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfigCmd_GetSet tests reading and writing one setting.
func TestConfigCmd_GetSet(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "", "config", "get", "ingestion.batch_size")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = execute(t, "", "config", "set", "ingestion.batch_size", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "ingestion.batch_size = 3")
	assert.Equal(t, 3, env.config.GetInt("ingestion.batch_size"))

	out, err = execute(t, "", "config", "get", "ingestion.batch_size")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

// TestConfigCmd_SetInvalid tests that bad values are rejected.
func TestConfigCmd_SetInvalid(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "config", "set", "ingestion.batch_size", "many")
	require.Error(t, err)

	_, err = execute(t, "", "config", "get", "no.such.key")
	require.Error(t, err)
}

// TestConfigCmd_ListMasksSecrets tests that secrets never print in full.
func TestConfigCmd_ListMasksSecrets(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "config", "set", "embedding.api_key", "sk-abcdefghijklmnop")
	require.NoError(t, err)

	out, err := execute(t, "", "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ingestion.batch_size")
	assert.Contains(t, out, "sk-a...mnop")
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
}

// TestDisplayValue tests secret masking by key.
func TestDisplayValue(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"ingestion.batch_size", "5", "5"},
		{"embedding.api_key", "", ""},
		{"embedding.api_key", "short", "****"},
		{"github.token", "ghp_1234567890", "ghp_...7890"},
		{"storage.database_url", "postgres://user:secret@db:5432/sentinel", "postgres://user:****@db:5432/sentinel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, displayValue(tt.key, tt.value), tt.key)
	}
}

// TestMaskURLPassword tests URLs without a password are unchanged.
func TestMaskURLPassword(t *testing.T) {
	assert.Equal(t, "postgres://db:5432/x", maskURLPassword("postgres://db:5432/x"))
	assert.Equal(t, "postgres://user@db/x", maskURLPassword("postgres://user@db/x"))
	assert.Equal(t, "not a url", maskURLPassword("not a url"))
	assert.Equal(t, "postgres://u:****@h/x", maskURLPassword("postgres://u:p@ss@h/x"))
}
