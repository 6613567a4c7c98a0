package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"get"},
	Short:   "Show an issue with its dependencies and readiness",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := store.GetIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issue)
			return nil
		}
		fmt.Print(renderIssue(issue))

		hints, err := store.ValidTransitions(cmd.Context(), issue.ID)
		if err == nil && len(hints) > 0 {
			fmt.Print(dimStyle.Render("  transitions:"))
			for _, h := range hints {
				marker := ""
				if !h.Ready {
					marker = "*"
				}
				fmt.Printf(" %s%s", h.To, marker)
			}
			fmt.Println()
		}
		return nil
	},
}

var transitionsCmd = &cobra.Command{
	Use:     "transitions <id>",
	Short:   "List the transitions available from an issue's current state",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		hints, err := store.ValidTransitions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(hints)
			return nil
		}
		if len(hints) == 0 {
			fmt.Println(dimStyle.Render("no transitions available"))
			return nil
		}
		for _, h := range hints {
			line := fmt.Sprintf("%-14s (%s)", h.To, h.Category)
			if !h.Ready {
				line += warnStyle.Render("  missing required fields")
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(transitionsCmd)
}
