package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var (
	chunksCategories []string
	chunksText       string
	chunksPattern    string
	chunksLimit      int
	chunksJSON       bool
)

var chunksCmd = &cobra.Command{
	Use:   "chunks <company> <model>",
	Short: "List stored chunks for a model",
	Long: `Lists the chunks stored for one (company, model), optionally filtered
by policy category, substring or regular expression.`,
	Args: cobra.ExactArgs(2),
	RunE: runChunks,
}

func init() {
	f := chunksCmd.Flags()
	f.StringSliceVarP(&chunksCategories, "category", "c", nil, "policy categories to match (any)")
	f.StringVar(&chunksText, "text", "", "case-insensitive substring to match")
	f.StringVar(&chunksPattern, "pattern", "", "regular expression to match")
	f.IntVarP(&chunksLimit, "limit", "n", 20, "maximum number of chunks (0 for all)")
	f.BoolVar(&chunksJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	filter := domain.ChunkFilter{
		Categories: chunksCategories,
		Text:       chunksText,
		Pattern:    chunksPattern,
		Limit:      chunksLimit,
	}
	records, err := query.GetChunks(cmd.Context(), args[0], args[1], filter)
	if err != nil {
		return fmt.Errorf("get chunks failed: %w", err)
	}
	if chunksJSON {
		return outputJSON(cmd, records)
	}
	return outputRecords(cmd, records)
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputRecords(cmd *cobra.Command, records []domain.StoredRecord) error {
	if len(records) == 0 {
		cmd.Println("No chunks found.")
		return nil
	}
	st := newStyles(cmd.OutOrStdout())
	for i := range records {
		r := &records[i]
		cmd.Printf("  [%d] %s\n", i+1, st.Title(r.ID))
		cmd.Printf("      %s\n", st.Muted(recordSource(r)))
		cmd.Printf("      %s\n", snippet(r.Text, 200))
		cmd.Println()
	}
	cmd.Println(st.Muted(fmt.Sprintf("%d chunks", len(records))))
	return nil
}

func recordSource(r *domain.StoredRecord) string {
	m := &r.Metadata
	parts := []string{m.DocumentType, string(m.Format)}
	if m.PageNumber > 0 {
		page := fmt.Sprintf("p.%d", m.PageNumber)
		if m.EstimatedPage {
			page += "~"
		}
		parts = append(parts, page)
	}
	if len(m.PolicyCategories) > 0 {
		parts = append(parts, strings.Join(m.PolicyCategories, ","))
	}
	if m.ParsingStatus.IsPlaceholder() {
		parts = append(parts, string(m.ParsingStatus))
	}
	return strings.Join(parts, " | ") + " " + m.SourceURL
}

// snippet collapses whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
