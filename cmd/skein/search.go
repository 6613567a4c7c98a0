package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:     "search <terms...>",
	Short:   "Full-text search over titles, descriptions and notes",
	Args:    cobra.MinimumNArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := store.SearchIssues(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(results)
			return nil
		}
		if len(results) == 0 {
			fmt.Println(dimStyle.Render("no matches"))
			return nil
		}
		for _, issue := range results {
			fmt.Println(renderIssueLine(issue))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
