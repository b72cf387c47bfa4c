package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// EmbeddingProvider identifies an embedding backend.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingLocal is the built-in in-process model.
	EmbeddingLocal EmbeddingProvider = "local"

	// EmbeddingOllama is a local Ollama instance.
	EmbeddingOllama EmbeddingProvider = "ollama"

	// EmbeddingOpenAI is the OpenAI embeddings API.
	EmbeddingOpenAI EmbeddingProvider = "openai"

	// EmbeddingGemini is the Google Gemini embeddings API.
	EmbeddingGemini EmbeddingProvider = "gemini"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingLocal, EmbeddingOllama, EmbeddingOpenAI, EmbeddingGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingOpenAI || p == EmbeddingGemini
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingLocal:
		return "Local (in-process hashed model)"
	case EmbeddingOllama:
		return "Ollama (local server)"
	case EmbeddingOpenAI:
		return "OpenAI (cloud)"
	case EmbeddingGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// DefaultEmbeddingModels returns default models for each provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		EmbeddingLocal:  "hashed-ngram-384",
		EmbeddingOllama: "all-minilm",
		EmbeddingOpenAI: "text-embedding-3-small",
		EmbeddingGemini: "text-embedding-004",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"hashed-ngram-384":       384,
		"all-minilm":             384,
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"text-embedding-004":     768,
	}
}

// StorageBackend identifies a chunk store implementation.
type StorageBackend string

// Available storage backends.
const (
	StorageSQLite   StorageBackend = "sqlite"
	StoragePostgres StorageBackend = "postgres"
	StorageMemory   StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// IngestionSettings controls the orchestrator.
type IngestionSettings struct {
	// BatchSize bounds concurrent sources.
	BatchSize int

	// BatchDelay is the pause between batches.
	BatchDelay time.Duration

	// SourceTimeout bounds one source end-to-end.
	SourceTimeout time.Duration

	// MaxChunkSize and OverlapSize configure the segmenter, in characters.
	MaxChunkSize int
	OverlapSize  int

	// EnableEmbeddings runs the Embedding stage.
	EnableEmbeddings bool

	// EnableStorage runs the Storing stage. False is a dry run.
	EnableStorage bool

	// ReplaceExisting purges each (company, model) once before storing.
	ReplaceExisting bool
}

// FetchSettings controls the HTTP fetcher.
type FetchSettings struct {
	UserAgent         string
	Timeout           time.Duration
	MaxBodyBytes      int64
	RequestsPerSecond float64
	Burst             int
	RespectRobots     bool
	RobotsTTL         time.Duration
}

// RenderSettings controls the JS-rendering fetch path.
type RenderSettings struct {
	// Enabled allows the headless browser fallback.
	Enabled bool

	// ExecPath overrides the browser binary.
	ExecPath string

	// Timeout bounds one render.
	Timeout time.Duration
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider   EmbeddingProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int

	// Workers bounds concurrent embedding calls process-wide.
	Workers int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings selects and configures the chunk store.
type StorageSettings struct {
	Backend     StorageBackend
	DataDir     string
	DatabaseURL string
}

// GitHubSettings configures the repository extractor.
type GitHubSettings struct {
	Token   string
	BaseURL string
}

// Settings holds all application settings.
type Settings struct {
	Ingestion   IngestionSettings
	Fetch       FetchSettings
	Render      RenderSettings
	Embedding   EmbeddingSettings
	Storage     StorageSettings
	GitHub      GitHubSettings
	CatalogPath string
}

// Default values.
const (
	DefaultBatchSize     = 5
	DefaultBatchDelay    = 2 * time.Second
	DefaultSourceTimeout = 90 * time.Second
	DefaultMaxChunkSize  = 1000
	DefaultOverlapSize   = 200
	DefaultFetchTimeout  = 60 * time.Second
	DefaultMaxBodyBytes  = 50 << 20
	DefaultRobotsTTL     = time.Hour
	DefaultRenderTimeout = 45 * time.Second
	DefaultUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultSettings returns settings with sensible defaults.
// Embeddings use the local model and storage uses SQLite under dataDir.
func DefaultSettings(dataDir string) Settings {
	return Settings{
		Ingestion: IngestionSettings{
			BatchSize:        DefaultBatchSize,
			BatchDelay:       DefaultBatchDelay,
			SourceTimeout:    DefaultSourceTimeout,
			MaxChunkSize:     DefaultMaxChunkSize,
			OverlapSize:      DefaultOverlapSize,
			EnableEmbeddings: true,
			EnableStorage:    true,
		},
		Fetch: FetchSettings{
			UserAgent:         DefaultUserAgent,
			Timeout:           DefaultFetchTimeout,
			MaxBodyBytes:      DefaultMaxBodyBytes,
			RequestsPerSecond: 1,
			Burst:             2,
			RespectRobots:     true,
			RobotsTTL:         DefaultRobotsTTL,
		},
		Render: RenderSettings{
			Enabled: true,
			Timeout: DefaultRenderTimeout,
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingLocal,
			Model:      DefaultEmbeddingModels()[EmbeddingLocal],
			Dimensions: 384,
			Workers:    4,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
			DataDir: dataDir,
		},
	}
}

// Validate checks settings for values the pipeline cannot run with.
func (s *Settings) Validate() error {
	if s.Ingestion.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be >= 1", ErrInvalidInput)
	}
	if s.Ingestion.MaxChunkSize < 1 {
		return fmt.Errorf("%w: max_chunk_size must be >= 1", ErrInvalidInput)
	}
	if s.Ingestion.OverlapSize < 0 || s.Ingestion.OverlapSize >= s.Ingestion.MaxChunkSize {
		return fmt.Errorf("%w: overlap_size must be in [0, max_chunk_size)", ErrInvalidInput)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: embedding provider %q", ErrUnsupportedType, s.Embedding.Provider)
	}
	if !s.Storage.Backend.IsValid() {
		return fmt.Errorf("%w: storage backend %q", ErrUnsupportedType, s.Storage.Backend)
	}
	if s.Storage.Backend == StoragePostgres && s.Storage.DatabaseURL == "" {
		return fmt.Errorf("%w: postgres backend requires database_url", ErrInvalidInput)
	}
	return nil
}
