package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var (
	searchLimit    int
	searchSemantic bool
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <company> <model> <query>",
	Short: "Search a model's stored chunks",
	Long: `Searches the chunks stored for one (company, model).

By default the query is matched as a case-insensitive substring.
With --semantic the query is embedded and chunks are ranked by cosine
similarity to it.`,
	Args: cobra.ExactArgs(3),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "rank by embedding similarity")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	company, model, q := args[0], args[1], args[2]

	if !searchSemantic {
		records, err := query.SearchChunksByText(cmd.Context(), company, model, q, searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if searchJSON {
			return outputJSON(cmd, records)
		}
		return outputRecords(cmd, records)
	}

	hits, err := query.SemanticSearch(cmd.Context(), company, model, q, searchLimit)
	if err != nil {
		return fmt.Errorf("semantic search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, hits)
	}
	return outputScored(cmd, hits)
}

func outputScored(cmd *cobra.Command, hits []domain.ScoredChunk) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		r := &hits[i].Record
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, st.Title(r.ID), hits[i].Score)
		cmd.Printf("      %s\n", st.Muted(recordSource(r)))
		cmd.Printf("      %s\n", snippet(r.Text, 200))
		cmd.Println()
	}
	return nil
}
