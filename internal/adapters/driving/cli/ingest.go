package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
	"github.com/custodia-labs/sentinel/internal/logger"
)

var (
	ingestCompany  string
	ingestModel    string
	ingestPriority int
	ingestAll      bool
	ingestDryRun   bool
	ingestNoEmbed  bool
	ingestReplace  bool
	ingestWatch    bool
	ingestJSON     bool
)

// errSourcesFailed makes the process exit non-zero after a partial run.
var errSourcesFailed = errors.New("some sources failed")

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documentation sources from the catalog",
	Long: `Fetches the selected catalog sources, extracts and chunks their text,
embeds each chunk and stores it under the source's (company, model).

Sources are processed in concurrent batches. A failing source never
affects the others; failures are recorded in the failure log.

Examples:
  sentinel ingest --all
  sentinel ingest --company OpenAI --model GPT-4 --replace
  sentinel ingest --priority 1 --dry-run
  sentinel ingest --all --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestCompany, "company", "", "only sources from this company")
	f.StringVar(&ingestModel, "model", "", "only sources for this model")
	f.IntVar(&ingestPriority, "priority", 0, "only sources at or above this priority tier (1 is highest)")
	f.BoolVar(&ingestAll, "all", false, "ingest every catalog source")
	f.BoolVar(&ingestDryRun, "dry-run", false, "extract and chunk without storing")
	f.BoolVar(&ingestNoEmbed, "no-embed", false, "skip embedding generation")
	f.BoolVar(&ingestReplace, "replace", false, "purge each model's existing chunks before storing")
	f.BoolVar(&ingestWatch, "watch", false, "re-run whenever the catalog file changes")
	f.BoolVar(&ingestJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func ingestSelection() (domain.SourceSelection, error) {
	sel := domain.SourceSelection{
		Company:     ingestCompany,
		Model:       ingestModel,
		MaxPriority: ingestPriority,
	}
	if !ingestAll && sel == (domain.SourceSelection{}) {
		return sel, fmt.Errorf("%w: specify --company, --model, --priority or --all", domain.ErrInvalidInput)
	}
	return sel, nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	sel, err := ingestSelection()
	if err != nil {
		return err
	}
	catalog, err := catalogService()
	if err != nil {
		return err
	}
	if services.Ingestion == nil {
		return fmt.Errorf("ingestion: %w", errNotConfigured)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := ingestOnce(ctx, cmd, catalog, services.Ingestion, sel)
	if err != nil {
		return err
	}
	if !ingestWatch {
		if result != nil && result.Failed > 0 {
			return fmt.Errorf("%w: %d of %d", errSourcesFailed, result.Failed, result.Total)
		}
		return nil
	}
	return watchCatalog(ctx, cmd, catalog, sel)
}

// watchCatalog re-runs the selection each time the catalog changes.
func watchCatalog(ctx context.Context, cmd *cobra.Command, catalog driving.CatalogService, sel domain.SourceSelection) error {
	if services.Watcher == nil {
		return fmt.Errorf("watch: %w", errNotConfigured)
	}
	changes, err := services.Watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching catalog: %w", err)
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Muted("Watching catalog for changes (Ctrl+C to stop)..."))

	for range changes {
		if _, err := catalog.Reload(ctx); err != nil {
			logger.Error("Catalog reload failed, keeping previous catalog: %v", err)
			continue
		}
		cmd.Println(st.Title("Catalog changed, re-ingesting"))
		if _, err := ingestOnce(ctx, cmd, catalog, services.Ingestion, sel); err != nil {
			logger.Error("Ingestion run failed: %v", err)
		}
	}
	return nil
}

func ingestOnce(
	ctx context.Context,
	cmd *cobra.Command,
	catalog driving.CatalogService,
	ingestion driving.IngestionService,
	sel domain.SourceSelection,
) (*domain.BatchResult, error) {
	sources, err := catalog.Select(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("selecting sources: %w", err)
	}
	out := cmd.OutOrStdout()
	st := newStyles(out)
	if len(sources) == 0 {
		fmt.Fprintln(out, st.Warn("No sources match the selection."))
		return nil, nil
	}

	if !ingestJSON {
		fmt.Fprintf(out, "%s %d sources\n", st.Title("Ingesting"), len(sources))
	}

	var mu sync.Mutex
	opts := driving.IngestOptions{
		DryRun:  ingestDryRun,
		NoEmbed: ingestNoEmbed,
		Replace: ingestReplace,
	}
	if !ingestJSON {
		opts.OnResult = func(_ int, r domain.SourceResult) {
			mu.Lock()
			defer mu.Unlock()
			printSourceResult(out, st, r)
		}
	}

	result, err := ingestion.Ingest(ctx, sources, opts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return result, nil
	}
	printBatchSummary(out, st, result)
	return result, nil
}

func printSourceResult(w io.Writer, st *styles, r domain.SourceResult) {
	label := r.Source.Label()
	switch {
	case !r.Succeeded():
		fmt.Fprintf(w, "  %s %s: %s %s\n", st.Fail("FAIL"), label, r.Error, st.Muted("["+r.ErrorCode+"]"))
	case r.Placeholder:
		fmt.Fprintf(w, "  %s %s: %s\n", st.Warn("SKIP"), label, r.Reason)
	default:
		fmt.Fprintf(w, "  %s %s: %d chunks, %d embedded, %d stored %s\n",
			st.OK(" OK "), label, r.Chunks, r.Embedded, r.Stored,
			st.Muted(r.Duration.Round(time.Millisecond).String()))
	}
}

func printBatchSummary(w io.Writer, st *styles, result *domain.BatchResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.Title("Summary"))
	fmt.Fprintf(w, "  Run:          %s\n", result.RunID)
	fmt.Fprintf(w, "  Total:        %d\n", result.Total)
	fmt.Fprintf(w, "  Successful:   %s\n", st.OK(fmt.Sprint(result.Successful)))
	if result.Failed > 0 {
		fmt.Fprintf(w, "  Failed:       %s\n", st.Fail(fmt.Sprint(result.Failed)))
	} else {
		fmt.Fprintf(w, "  Failed:       0\n")
	}
	fmt.Fprintf(w, "  Placeholders: %d\n", result.Placeholders)
	fmt.Fprintf(w, "  Total chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(w, "  Duration:     %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Title("Failed sources"))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n    %s\n", e.Source.URL, st.Muted(e.Error))
		}
	}
}
