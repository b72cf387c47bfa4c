package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var (
	checkCompany string
	checkModel   string
)

var errUnhealthy = errors.New("health check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the store, embedding backend and per-model data",
	Long: `Pings the chunk store and the embedding backend, then reports how many
chunks are stored for each catalog model. Exits non-zero if a dependency
is unreachable.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkCompany, "company", "", "only models from this company")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "only this model")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	catalog, err := catalogService()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sources, err := catalog.Select(ctx, domain.SourceSelection{Company: checkCompany, Model: checkModel})
	if err != nil {
		return fmt.Errorf("selecting models: %w", err)
	}
	models := (&domain.Catalog{Sources: sources}).Models()

	report, err := query.Health(ctx, models)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	status := func(err error) string {
		if err != nil {
			return st.Fail("FAIL") + " " + err.Error()
		}
		return st.OK("OK")
	}
	cmd.Println(st.Title("Dependencies"))
	cmd.Printf("  Store:      %s\n", status(report.StoreErr))
	cmd.Printf("  Embeddings: %s\n", status(report.EmbeddingErr))

	if len(report.Models) > 0 {
		rows := make([][]string, len(report.Models))
		for i, m := range report.Models {
			state := st.OK("available")
			if m.Chunks == 0 {
				state = st.Warn("empty")
			}
			rows[i] = []string{m.Key.Company, m.Key.Model, fmt.Sprint(m.Chunks), state}
		}
		cmd.Println()
		cmd.Println(st.Table([]string{"Company", "Model", "Chunks", "Status"}, rows))
		cmd.Printf("Total: %d chunks\n", report.TotalChunks)
	}

	if !report.Healthy() {
		return errUnhealthy
	}
	return nil
}
