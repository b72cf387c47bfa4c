package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentinel/internal/adapters/driving/mcp"
)

var (
	mcpPort      int
	mcpKeepAlive time.Duration
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose stored chunks to audit agents over MCP",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serves the Model Context Protocol so audit agents can read what was
ingested: per-model chunks, category, text and semantic search, compliance
summaries, store statistics and the failure log. The catalog is published
as the sentinel://sources resource.

Without --port the server speaks JSON-RPC over stdio, which is what
desktop agents launch. With --port it serves streamable HTTP.

Examples:
  sentinel mcp serve
  sentinel mcp serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 serves stdio)")
	mcpServeCmd.Flags().DurationVar(&mcpKeepAlive, "keep-alive", 0, "ping idle sessions at this interval (0 disables)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	query, err := queryService()
	if err != nil {
		return err
	}
	ports := &mcp.Ports{Query: query, Catalog: services.Catalog}

	server, err := mcp.NewServer(ports, mcp.WithVersion(version), mcp.WithKeepAlive(mcpKeepAlive))
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
