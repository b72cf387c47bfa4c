package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

const tomlCatalog = `
[aliases]
"GPT-4o mini" = "GPT-4o"

[categories]
Safety = "Safety & Risk Management"

[[sources]]
company = "OpenAI"
model = "GPT-4o mini"
document_type = "System Card"
format = "pdf"
url = "https://cdn.openai.com/gpt-4o-system-card.pdf"
policy_categories = ["Safety", " limitations "]

[[sources]]
id = "meta_llama3_repo"
company = "Meta"
model = "Llama 3"
document_type = "GitHub Repository"
format = "repository"
url = "https://github.com/meta-llama/llama3"
priority = 1

[[sources]]
company = "Google"
model = "Gemini"
document_type = "Blog"
format = "rss"
url = "https://blog.google/gemini"
`

const yamlCatalog = `
aliases:
  Claude 3.5: Claude 3.5 Sonnet
sources:
  - company: Anthropic
    model: Claude 3.5
    document_type: Usage Policy
    format: web
    url: https://www.anthropic.com/legal/aup
    policy_categories: [safety]
`

func TestParse_TOML(t *testing.T) {
	cat, err := Parse([]byte(tomlCatalog), ".toml")
	require.NoError(t, err)
	require.Len(t, cat.Sources, 3)

	gpt := cat.Sources[0]
	assert.Equal(t, "GPT-4o", gpt.Model)
	assert.Equal(t, domain.FormatPDF, gpt.Format)
	assert.Equal(t, []string{"safety", "limitations"}, gpt.PolicyCategories)
	assert.Equal(t, 1, gpt.Priority)
	assert.Equal(t, SourceID("OpenAI", "GPT-4o", gpt.URL), gpt.ID)

	llama := cat.Sources[1]
	assert.Equal(t, "meta_llama3_repo", llama.ID)
	assert.Equal(t, domain.FormatRepository, llama.Format)
	assert.Equal(t, 1, llama.Priority)

	gemini := cat.Sources[2]
	assert.Equal(t, domain.FormatWeb, gemini.Format)
	assert.Equal(t, 3, gemini.Priority)

	assert.Equal(t, "Safety & Risk Management", cat.CategoryLabel("safety"))
}

func TestParse_YAML(t *testing.T) {
	cat, err := Parse([]byte(yamlCatalog), ".yml")
	require.NoError(t, err)
	require.Len(t, cat.Sources, 1)
	assert.Equal(t, "Claude 3.5 Sonnet", cat.Sources[0].Model)
	assert.Equal(t, 2, cat.Sources[0].Priority)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"bad toml", "[[sources]\n", ".toml"},
		{"bad yaml", "sources: [", ".yaml"},
		{"missing url", "[[sources]]\ncompany = \"A\"\nmodel = \"B\"\n", ".toml"},
		{"duplicate id", "[[sources]]\nid = \"x\"\ncompany = \"A\"\nmodel = \"B\"\nurl = \"u\"\n[[sources]]\nid = \"x\"\ncompany = \"A\"\nmodel = \"C\"\nurl = \"v\"\n", ".toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSourceID_Stable(t *testing.T) {
	a := SourceID("OpenAI", "GPT-4", "https://x/a.pdf")
	assert.Equal(t, a, SourceID("openai", "gpt 4", "https://x/a.pdf"))
	assert.NotEqual(t, a, SourceID("OpenAI", "GPT-4", "https://x/b.pdf"))
}

func TestStore_DefaultCatalog(t *testing.T) {
	s := NewStore("")
	assert.Empty(t, s.Path())

	cat, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Sources)

	var o1 *domain.SourceDescriptor
	for i := range cat.Sources {
		require.NoError(t, cat.Sources[i].Validate())
		if cat.Sources[i].Model == "o1-preview" {
			o1 = &cat.Sources[i]
		}
	}
	require.NotNil(t, o1)
	assert.Equal(t, domain.FormatPDF, o1.Format)
}

func TestStore_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlCatalog), 0600))

	cat, err := NewStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.Sources, 1)

	_, err = NewStore(filepath.Join(t.TempDir(), "missing.toml")).Load(context.Background())
	assert.Error(t, err)
}

func TestWatcher_SignalsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlCatalog), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := NewWatcher(path, 20*time.Millisecond).Watch(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte(yamlCatalog), 0600)
		_ = os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0600)
	}()

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for catalog change")
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			for range changes {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestWatcher_BuiltIn(t *testing.T) {
	ch, err := NewWatcher("", 0).Watch(context.Background())
	assert.Error(t, err)
	assert.Nil(t, ch)
}
