package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	catalogfile "github.com/custodia-labs/sentinel/internal/adapters/driven/catalog/file"
	configfile "github.com/custodia-labs/sentinel/internal/adapters/driven/config/file"
	embeddingfactory "github.com/custodia-labs/sentinel/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/fetch"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sentinel/internal/adapters/driving/cli"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/services"
	"github.com/custodia-labs/sentinel/internal/embedding"
	"github.com/custodia-labs/sentinel/internal/extractors"
	"github.com/custodia-labs/sentinel/internal/extractors/pdf"
	"github.com/custodia-labs/sentinel/internal/extractors/repository"
	"github.com/custodia-labs/sentinel/internal/extractors/web"
	"github.com/custodia-labs/sentinel/internal/logger"
	"github.com/custodia-labs/sentinel/internal/segmenter"
)

var log = logger.For("wire")

// build wires adapters into services. Commands that do not need stored
// chunks get settings and the catalog only.
func build(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	cfgStore, err := openConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}
	settingsSvc := services.NewSettingsService(cfgStore, dataDir)
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	catalogPath := opts.CatalogPath
	if catalogPath == "" {
		catalogPath = settings.CatalogPath
	}
	out := &cli.Services{
		Settings: settingsSvc,
		Catalog:  services.NewCatalogService(catalogfile.NewStore(catalogPath)),
	}
	if catalogPath != "" {
		out.Watcher = catalogfile.NewWatcher(catalogPath, catalogfile.DefaultDebounce)
	}
	if !opts.WithStore {
		return out, nil
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	store, failures, err := openStore(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}
	closers := []func() error{store.Close}

	registry, closeRenderer := buildExtractors(ctx, settings)
	if closeRenderer != nil {
		closers = append(closers, closeRenderer)
	}

	embeddingSettings := settings.Embedding
	generator := embedding.New(
		func(ctx context.Context) (driven.EmbeddingService, error) {
			return embeddingfactory.CreateEmbeddingService(ctx, embeddingSettings)
		},
		embedding.WithWorkers(embeddingSettings.Workers),
		embedding.WithModelName(embeddingSettings.Model),
	)
	closers = append(closers, generator.Close)

	var ingestEmbedder driven.Embedder
	if settings.Ingestion.EnableEmbeddings {
		ingestEmbedder = generator
	}

	out.Ingestion = services.NewIngestionService(registry, ingestEmbedder, store, failures, settings.Ingestion)
	out.Query = services.NewQueryService(store, failures, generator)
	out.Close = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return out, nil
}

func openConfig(path string) (*configfile.ConfigStore, error) {
	if path != "" {
		return configfile.NewConfigStoreAt(path)
	}
	return configfile.NewConfigStore("")
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sentinel", "data"), nil
}

// openStore opens the configured backend. The persistent backends keep
// the failure log next to the chunks.
func openStore(ctx context.Context, s domain.StorageSettings) (driven.ChunkStore, driven.FailureLog, error) {
	switch s.Backend {
	case domain.StoragePostgres:
		store, err := postgres.NewStore(ctx, s.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case domain.StorageMemory:
		log.Warn("Using the in-memory store; chunks are discarded on exit")
		return memory.NewChunkStore(), memory.NewFailureLog(), nil
	default:
		store, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// buildExtractors returns the registry and, when a browser was started,
// a function that stops it.
func buildExtractors(ctx context.Context, s *domain.Settings) (*extractors.Registry, func() error) {
	var fetchOpts []fetch.Option
	var closeRenderer func() error
	if s.Render.Enabled {
		if fetch.BrowserAvailable(s.Render.ExecPath) {
			r := fetch.NewChromeRenderer(s.Fetch.UserAgent, s.Render.ExecPath, s.Render.Timeout)
			fetchOpts = append(fetchOpts, fetch.WithRenderer(r))
			closeRenderer = r.Close
		} else {
			log.Debug("No headless browser found, JavaScript rendering disabled")
		}
	}
	fetcher := fetch.New(fetch.ConfigFromSettings(s.Fetch), fetchOpts...)

	seg := segmenter.New(
		segmenter.WithMaxChunkSize(s.Ingestion.MaxChunkSize),
		segmenter.WithOverlapSize(s.Ingestion.OverlapSize),
	)

	exts := []driven.Extractor{
		pdf.New(fetcher, pdf.NewDocconvConverter(), seg),
		web.New(fetcher, seg, web.WithRenderFallback(closeRenderer != nil)),
	}
	client, err := repository.NewClient(ctx, repository.ConfigFromSettings(s.GitHub))
	if err != nil {
		log.Warn("GitHub API disabled, reading READMEs from repository pages: %v", err)
		client = nil
	}
	exts = append(exts, repository.New(client, fetcher, seg))
	return extractors.NewRegistry(exts...), closeRenderer
}
