package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var readyLimit int

var readyCmd = &cobra.Command{
	Use:     "ready",
	Short:   "List issues that are open and unblocked, in claim order",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := store.GetReadyIssues(cmd.Context(), readyLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issues)
			return nil
		}
		if len(issues) == 0 {
			fmt.Println(dimStyle.Render("nothing is ready"))
			return nil
		}
		for _, issue := range issues {
			fmt.Println(renderIssueLine(issue))
		}
		return nil
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	Short:   "List issues waiting on unresolved blockers",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		blocked, err := store.GetBlockedIssues(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(blocked)
			return nil
		}
		if len(blocked) == 0 {
			fmt.Println(dimStyle.Render("nothing is blocked"))
			return nil
		}
		for _, b := range blocked {
			fmt.Printf("%s  %s\n", renderIssueLine(&b.Issue),
				warnStyle.Render("⇐ "+strings.Join(b.BlockedByIDs, ", ")))
		}
		return nil
	},
}

func init() {
	readyCmd.Flags().IntVarP(&readyLimit, "limit", "n", 0, "maximum results")
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)
}
