package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary <company> <model>",
	Short: "Show a compliance summary for a model",
	Long: `Aggregates a model's stored chunks by policy category, document type
and format. Category tags are shown with their catalog labels.`,
	Args: cobra.ExactArgs(2),
	RunE: runSummary,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk counts for every stored model",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "output summary as JSON")
	statsCmd.Flags().BoolVar(&summaryJSON, "json", false, "output stats as JSON")
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(statsCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	summary, err := query.GetComplianceSummary(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}
	if summaryJSON {
		return outputJSON(cmd, summary)
	}

	// Labels are cosmetic; a broken catalog must not hide the summary.
	var catalog *domain.Catalog
	if svc, err := catalogService(); err == nil {
		catalog, _ = svc.Catalog(cmd.Context())
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title(fmt.Sprintf("%s / %s", summary.Company, summary.Model)))
	cmd.Printf("  Chunks:          %d\n", summary.TotalChunks)
	cmd.Printf("  Sources:         %d\n", summary.Sources)
	cmd.Printf("  With embeddings: %d\n", summary.WithEmbeddings)
	if !summary.LastUpdated.IsZero() {
		cmd.Printf("  Last updated:    %s\n", summary.LastUpdated.Local().Format(time.RFC3339))
	}

	if cats := summary.SortedCategories(); len(cats) > 0 {
		rows := make([][]string, len(cats))
		for i, c := range cats {
			rows[i] = []string{catalog.CategoryLabel(c.Category), c.Category, fmt.Sprint(c.Count)}
		}
		cmd.Println()
		cmd.Println(st.Table([]string{"Category", "Tag", "Chunks"}, rows))
	}
	cmd.Println()
	cmd.Println(st.Table([]string{"Document type", "Chunks"}, countRows(summary.ByDocumentType)))
	cmd.Println(st.Table([]string{"Format", "Chunks"}, countRows(summary.ByFormat)))
	return nil
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, fmt.Sprint(counts[k])}
	}
	return rows
}

func runStats(cmd *cobra.Command, _ []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	stats, err := query.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	if summaryJSON {
		return outputJSON(cmd, stats)
	}
	if len(stats.Namespaces) == 0 {
		cmd.Println("No chunks stored.")
		return nil
	}
	var rows [][]string
	for _, ns := range stats.Namespaces {
		for _, c := range ns.Collections {
			rows = append(rows, []string{ns.Namespace, c.Collection, fmt.Sprint(c.Count)})
		}
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Table([]string{"Namespace", "Collection", "Chunks"}, rows))
	cmd.Printf("Total: %d chunks in %d namespaces\n", stats.Total, len(stats.Namespaces))
	return nil
}
