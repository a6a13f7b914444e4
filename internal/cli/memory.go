package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "List what the assistant remembers about a user",
		RunE:  runMemory,
	}
	addIdentityFlags(cmd)
	cmd.Flags().StringP("query", "q", "", "Rank records against this text")
	cmd.Flags().IntP("limit", "l", 0, "Max records (default 5)")
	RootCmd.AddCommand(cmd)
}

func runMemory(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")

	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := a.Service.GetMemory(cmd.Context(), user, "", query, limit)
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
