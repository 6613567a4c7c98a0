package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var closeReason string

var closeCmd = &cobra.Command{
	Use:     "close <id>",
	Aliases: []string{"done"},
	Short:   "Close an issue (moves it to the template's done state)",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := store.CloseIssue(cmd.Context(), args[0], closeReason, currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issue)
			return nil
		}
		fmt.Println(okStyle.Render("✓ closed ") + issue.ID)
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	Short:   "Reopen a closed issue back to its initial state",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := store.ReopenIssue(cmd.Context(), args[0], currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issue)
			return nil
		}
		fmt.Println(okStyle.Render("✓ reopened ") + issue.ID)
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "why the issue is being closed")
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
}
