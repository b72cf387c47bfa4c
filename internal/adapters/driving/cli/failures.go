package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

var (
	failuresCompany string
	failuresModel   string
	failuresURL     string
	failuresLimit   int
	failuresJSON    bool
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show recorded ingestion failures",
	Long: `Lists failure log entries, newest first. Each entry records the source
URL, its (company, model), a stable error code and whether the failure is
worth retrying.`,
	Args: cobra.NoArgs,
	RunE: runFailures,
}

func init() {
	f := failuresCmd.Flags()
	f.StringVar(&failuresCompany, "company", "", "only failures for this company")
	f.StringVar(&failuresModel, "model", "", "only failures for this model")
	f.StringVar(&failuresURL, "url", "", "only failures for this URL")
	f.IntVarP(&failuresLimit, "limit", "n", 50, "maximum number of entries (0 for all)")
	f.BoolVar(&failuresJSON, "json", false, "output entries as JSON")
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command, _ []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	recs, err := query.Failures(cmd.Context(), domain.FailureQuery{
		URL:     failuresURL,
		Company: failuresCompany,
		Model:   failuresModel,
		Limit:   failuresLimit,
	})
	if err != nil {
		return fmt.Errorf("querying failures: %w", err)
	}
	if failuresJSON {
		return outputJSON(cmd, recs)
	}
	if len(recs) == 0 {
		cmd.Println("No failures recorded.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, len(recs))
	for i, r := range recs {
		retry := "no"
		if r.Retryable {
			retry = "yes"
		}
		rows[i] = []string{
			r.Timestamp.Local().Format(time.DateTime),
			r.Company + "/" + r.Model,
			r.ErrorCode,
			retry,
			r.URL,
		}
	}
	cmd.Println(st.Table([]string{"When", "Model", "Code", "Retry", "URL"}, rows))
	return nil
}
