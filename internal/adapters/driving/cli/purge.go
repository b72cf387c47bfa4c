package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge <company> <model>",
	Short: "Delete every stored chunk for a model",
	Args:  cobra.ExactArgs(2),
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	company, model := args[0], args[1]

	if !purgeYes {
		cmd.Printf("Delete all chunks for %s/%s? [y/N]: ", company, model)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer := strings.ToLower(readLine(reader))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	n, err := query.DeleteModelData(cmd.Context(), company, model)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	cmd.Printf("Deleted %d chunks for %s/%s.\n", n, company, model)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
