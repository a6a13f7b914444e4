package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history [thread-id]",
		Short: "Print one page of a thread",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	addIdentityFlags(cmd)
	cmd.Flags().Int64("cursor", 0, "Sequence number of the last message already seen")
	cmd.Flags().IntP("limit", "l", 0, "Max messages (default 50)")
	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	cursor, _ := cmd.Flags().GetInt64("cursor")
	limit, _ := cmd.Flags().GetInt("limit")

	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := a.Service.GetHistory(cmd.Context(), user, args[0], domain.PageRequest{Cursor: cursor, Limit: limit})
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(page, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
