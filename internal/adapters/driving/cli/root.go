// Package cli provides the sentinel command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// annotationNoStore marks commands that run without opening the chunk store.
const annotationNoStore = "sentinel/no-store"

// Options carries the global flags to the service factory.
type Options struct {
	ConfigPath  string
	CatalogPath string
	Verbose     bool

	// WithStore is false for commands that never touch stored chunks.
	WithStore bool
}

// Services holds the driving ports the commands use.
// Ingestion and Query are nil when the factory was called without a store.
type Services struct {
	Settings  driving.SettingsService
	Catalog   driving.CatalogService
	Ingestion driving.IngestionService
	Query     driving.QueryService
	Watcher   driven.CatalogWatcher

	// Close releases the store and embedding backend.
	Close func() error
}

// Factory builds services from the global flags.
type Factory func(ctx context.Context, opts Options) (*Services, error)

var (
	factory  Factory
	services *Services
	globals  Options
)

// SetFactory installs the function that wires services on startup.
func SetFactory(f Factory) {
	factory = f
}

// SetServices injects ready-made services, bypassing the factory.
func SetServices(s *Services) {
	services = s
}

var errNotConfigured = errors.New("services not configured")

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Ingest AI model documentation into per-model chunk stores",
	Long: `Sentinel collects the public documentation AI developers publish about
their models (system cards, papers, usage policies, model READMEs), splits it
into overlapping chunks, embeds each chunk and stores it per (company, model)
for downstream compliance auditing.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default ~/.sentinel/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globals.CatalogPath, "catalog", "", "source catalog file (TOML or YAML)")
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); cerr != nil && err == nil {
		err = fmt.Errorf("closing services: %w", cerr)
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(globals.Verbose)
	if services != nil || factory == nil {
		return nil
	}
	opts := globals
	opts.WithStore = cmd.Annotations[annotationNoStore] == ""
	s, err := factory(cmd.Context(), opts)
	if err != nil {
		return err
	}
	services = s
	return nil
}

func teardown() error {
	if services == nil || services.Close == nil {
		return nil
	}
	err := services.Close()
	services = nil
	return err
}

func noStore() map[string]string {
	return map[string]string{annotationNoStore: "true"}
}

// queryService returns the query port or an error if it is not wired.
func queryService() (driving.QueryService, error) {
	if services == nil || services.Query == nil {
		return nil, fmt.Errorf("query: %w", errNotConfigured)
	}
	return services.Query, nil
}

func catalogService() (driving.CatalogService, error) {
	if services == nil || services.Catalog == nil {
		return nil, fmt.Errorf("catalog: %w", errNotConfigured)
	}
	return services.Catalog, nil
}

func settingsService() (driving.SettingsService, error) {
	if services == nil || services.Settings == nil {
		return nil, fmt.Errorf("settings: %w", errNotConfigured)
	}
	return services.Settings, nil
}
