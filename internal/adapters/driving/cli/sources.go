package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var (
	sourcesCompany  string
	sourcesModel    string
	sourcesPriority int
	sourcesJSON     bool
)

var sourcesCmd = &cobra.Command{
	Use:         "sources",
	Short:       "List catalog sources",
	Long:        `Lists the documentation sources in the catalog, in catalog order.`,
	Args:        cobra.NoArgs,
	Annotations: noStore(),
	RunE:        runSources,
}

func init() {
	f := sourcesCmd.Flags()
	f.StringVar(&sourcesCompany, "company", "", "only sources from this company")
	f.StringVar(&sourcesModel, "model", "", "only sources for this model")
	f.IntVar(&sourcesPriority, "priority", 0, "only sources at or above this priority tier")
	f.BoolVar(&sourcesJSON, "json", false, "output sources as JSON")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	catalog, err := catalogService()
	if err != nil {
		return err
	}
	sources, err := catalog.Select(cmd.Context(), domain.SourceSelection{
		Company:     sourcesCompany,
		Model:       sourcesModel,
		MaxPriority: sourcesPriority,
	})
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	if sourcesJSON {
		return outputJSON(cmd, sources)
	}
	if len(sources) == 0 {
		cmd.Println("No sources found.")
		return nil
	}

	rows := make([][]string, len(sources))
	for i, s := range sources {
		rows[i] = []string{s.Company, s.Model, s.DocumentType, string(s.Format), fmt.Sprint(s.Priority), s.URL}
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Table([]string{"Company", "Model", "Type", "Format", "Priority", "URL"}, rows))
	cmd.Printf("%d sources\n", len(sources))
	return nil
}
