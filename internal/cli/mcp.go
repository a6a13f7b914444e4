package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	httptransport "github.com/xiaot623/gogo/assistant/internal/transport/http"
	"github.com/xiaot623/gogo/assistant/internal/transport/mcptools"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		Long:  "Serves ask, history and recall over stdio for one user. Logs go to stderr so they do not interfere with the protocol.",
		RunE:  runMCP,
	}
	addIdentityFlags(cmd)
	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.ServeStdio(mcptools.NewServer(a.Service, user, httptransport.Version))
}
