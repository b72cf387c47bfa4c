package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Environment variables that override config values.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvDatabaseURL       = "SENTINEL_DATABASE_URL"
	EnvEmbeddingProvider = "SENTINEL_EMBEDDING_PROVIDER"
	EnvStorageBackend    = "SENTINEL_STORAGE_BACKEND"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvGeminiKey         = "GEMINI_API_KEY"
	EnvGitHubToken       = "GITHUB_TOKEN"
)

// setting binds one config key to a field of domain.Settings.
type setting struct {
	key   string
	field func(s *domain.Settings) any
}

// settingsTable lists every supported key in display order.
var settingsTable = []setting{
	{"catalog_path", func(s *domain.Settings) any { return &s.CatalogPath }},

	{"ingestion.batch_size", func(s *domain.Settings) any { return &s.Ingestion.BatchSize }},
	{"ingestion.batch_delay", func(s *domain.Settings) any { return &s.Ingestion.BatchDelay }},
	{"ingestion.source_timeout", func(s *domain.Settings) any { return &s.Ingestion.SourceTimeout }},
	{"ingestion.max_chunk_size", func(s *domain.Settings) any { return &s.Ingestion.MaxChunkSize }},
	{"ingestion.overlap_size", func(s *domain.Settings) any { return &s.Ingestion.OverlapSize }},
	{"ingestion.enable_embeddings", func(s *domain.Settings) any { return &s.Ingestion.EnableEmbeddings }},
	{"ingestion.enable_storage", func(s *domain.Settings) any { return &s.Ingestion.EnableStorage }},
	{"ingestion.replace_existing", func(s *domain.Settings) any { return &s.Ingestion.ReplaceExisting }},

	{"fetch.user_agent", func(s *domain.Settings) any { return &s.Fetch.UserAgent }},
	{"fetch.timeout", func(s *domain.Settings) any { return &s.Fetch.Timeout }},
	{"fetch.max_body_bytes", func(s *domain.Settings) any { return &s.Fetch.MaxBodyBytes }},
	{"fetch.requests_per_second", func(s *domain.Settings) any { return &s.Fetch.RequestsPerSecond }},
	{"fetch.burst", func(s *domain.Settings) any { return &s.Fetch.Burst }},
	{"fetch.respect_robots", func(s *domain.Settings) any { return &s.Fetch.RespectRobots }},
	{"fetch.robots_ttl", func(s *domain.Settings) any { return &s.Fetch.RobotsTTL }},

	{"render.enabled", func(s *domain.Settings) any { return &s.Render.Enabled }},
	{"render.exec_path", func(s *domain.Settings) any { return &s.Render.ExecPath }},
	{"render.timeout", func(s *domain.Settings) any { return &s.Render.Timeout }},

	{"embedding.provider", func(s *domain.Settings) any { return &s.Embedding.Provider }},
	{"embedding.model", func(s *domain.Settings) any { return &s.Embedding.Model }},
	{"embedding.base_url", func(s *domain.Settings) any { return &s.Embedding.BaseURL }},
	{"embedding.api_key", func(s *domain.Settings) any { return &s.Embedding.APIKey }},
	{"embedding.dimensions", func(s *domain.Settings) any { return &s.Embedding.Dimensions }},
	{"embedding.workers", func(s *domain.Settings) any { return &s.Embedding.Workers }},

	{"storage.backend", func(s *domain.Settings) any { return &s.Storage.Backend }},
	{"storage.data_dir", func(s *domain.Settings) any { return &s.Storage.DataDir }},
	{"storage.database_url", func(s *domain.Settings) any { return &s.Storage.DatabaseURL }},

	{"github.token", func(s *domain.Settings) any { return &s.GitHub.Token }},
	{"github.base_url", func(s *domain.Settings) any { return &s.GitHub.BaseURL }},
}

// SettingsService resolves settings from defaults, the config store and
// the environment, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	dataDir     string
	getenv      func(string) string
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnv replaces os.Getenv, typically in tests.
func WithEnv(getenv func(string) string) SettingsOption {
	return func(s *SettingsService) {
		s.getenv = getenv
	}
}

// NewSettingsService creates a settings service. dataDir is the default
// storage directory.
func NewSettingsService(configStore driven.ConfigStore, dataDir string, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		dataDir:     dataDir,
		getenv:      os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings(s.dataDir)
}

// Get resolves the current settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	settings := s.GetDefaults()

	for _, st := range settingsTable {
		if _, ok := s.configStore.Get(st.key); !ok {
			continue
		}
		if err := s.load(st, &settings); err != nil {
			return nil, err
		}
	}

	modelSet := s.has("embedding.model")
	if v := s.getenv(EnvEmbeddingProvider); v != "" {
		settings.Embedding.Provider = domain.EmbeddingProvider(strings.ToLower(v))
		modelSet = false
	}
	if v := s.getenv(EnvStorageBackend); v != "" {
		settings.Storage.Backend = domain.StorageBackend(strings.ToLower(v))
	}
	if v := s.getenv(EnvDatabaseURL); v != "" {
		settings.Storage.DatabaseURL = v
	}
	if v := s.getenv(EnvGitHubToken); v != "" && settings.GitHub.Token == "" {
		settings.GitHub.Token = v
	}
	if settings.Embedding.APIKey == "" {
		switch settings.Embedding.Provider {
		case domain.EmbeddingOpenAI:
			settings.Embedding.APIKey = s.getenv(EnvOpenAIKey)
		case domain.EmbeddingGemini:
			settings.Embedding.APIKey = s.getenv(EnvGeminiKey)
		}
	}

	if !modelSet {
		if m, ok := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]; ok {
			settings.Embedding.Model = m
		}
	}
	if !s.has("embedding.dimensions") {
		settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]
	}
	return &settings, nil
}

// Set parses value for key and persists it.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var scratch domain.Settings
	var stored any
	switch p := st.field(&scratch).(type) {
	case *string:
		stored = value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		stored = n
	case *int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		stored = n
	case *float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		stored = f
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		stored = b
	case *time.Duration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s must be a duration such as 90s", domain.ErrInvalidInput, key)
		}
		stored = value
	case *domain.EmbeddingProvider:
		if !domain.EmbeddingProvider(value).IsValid() {
			return fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, value)
		}
		stored = value
	case *domain.StorageBackend:
		if !domain.StorageBackend(value).IsValid() {
			return fmt.Errorf("%w: storage backend %q", domain.ErrUnsupportedType, value)
		}
		stored = value
	default:
		return fmt.Errorf("unsupported setting type %T for %s", p, key)
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the supported config keys.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingsTable))
	for i, st := range settingsTable {
		keys[i] = st.key
	}
	return keys
}

// Lookup returns the resolved value of key.
func (s *SettingsService) Lookup(key string) (string, error) {
	st, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}
	switch p := st.field(settings).(type) {
	case *string:
		return *p, nil
	case *int:
		return strconv.Itoa(*p), nil
	case *int64:
		return strconv.FormatInt(*p, 10), nil
	case *float64:
		return strconv.FormatFloat(*p, 'g', -1, 64), nil
	case *bool:
		return strconv.FormatBool(*p), nil
	case *time.Duration:
		return p.String(), nil
	case fmt.Stringer:
		return p.String(), nil
	default:
		return fmt.Sprint(p), nil
	}
}

// Validate checks the resolved settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

func (s *SettingsService) has(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

func (s *SettingsService) load(st setting, settings *domain.Settings) error {
	c := s.configStore
	switch p := st.field(settings).(type) {
	case *string:
		*p = c.GetString(st.key)
	case *int:
		*p = c.GetInt(st.key)
	case *int64:
		*p = int64(c.GetInt(st.key))
	case *float64:
		*p = c.GetFloat(st.key)
	case *bool:
		*p = c.GetBool(st.key)
	case *time.Duration:
		*p = c.GetDuration(st.key)
	case *domain.EmbeddingProvider:
		*p = domain.EmbeddingProvider(strings.ToLower(c.GetString(st.key)))
	case *domain.StorageBackend:
		*p = domain.StorageBackend(strings.ToLower(c.GetString(st.key)))
	default:
		return fmt.Errorf("unsupported setting type %T for %s", p, st.key)
	}
	return nil
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}
