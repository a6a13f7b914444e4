package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/assistant/internal/repository"
)

func init() {
	cmd := &cobra.Command{
		Use:   "audit [user-id]",
		Short: "Print the filter audit trail of a user, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runAudit,
	}
	cmd.Flags().IntP("limit", "l", 50, "Max entries")
	RootCmd.AddCommand(cmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := repository.NewSQLiteStore(loadConfig().DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	entries, err := s.ListAudit(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("list audit: %w", err)
	}
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
