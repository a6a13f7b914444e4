package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	addIdentityFlags(cmd)
	cmd.Flags().StringP("thread", "t", "", "Thread to continue")
	cmd.Flags().Bool("json", false, "Print the full response as JSON")
	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	threadID, _ := cmd.Flags().GetString("thread")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := a.Service.HandleQuery(cmd.Context(), strings.Join(args, " "), user, threadID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		b, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, resp.Text())
	if resp.Meta != nil {
		fmt.Fprintf(out, "\nthread: %s  handlers: %s\n", resp.Meta.ThreadID, strings.Join(resp.Meta.Handlers, ", "))
	}
	return nil
}
