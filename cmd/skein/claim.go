package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/types"
)

var (
	claimType string
	claimPMin int
	claimPMax int
)

var claimCmd = &cobra.Command{
	Use:     "claim [id]",
	Short:   "Claim a specific issue, or the best ready one when no id is given",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := currentActor()

		if len(args) == 1 {
			if err := store.ClaimIssue(cmd.Context(), args[0], actor, actor); err != nil {
				return err
			}
			issue, err := store.GetIssue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(issue)
				return nil
			}
			fmt.Println(okStyle.Render("✓ claimed ") + renderIssueLine(issue))
			return nil
		}

		filter := types.ClaimFilter{IssueType: claimType}
		if cmd.Flags().Changed("priority-min") {
			filter.PriorityMin = &claimPMin
		}
		if cmd.Flags().Changed("priority-max") {
			filter.PriorityMax = &claimPMax
		}
		issue, err := store.ClaimNext(cmd.Context(), actor, filter, actor)
		if err != nil {
			return err
		}
		if issue == nil {
			if jsonOutput {
				printJSON(map[string]any{"claimed": false, "reason": "no ready unassigned issues match"})
				return nil
			}
			fmt.Println(dimStyle.Render("nothing to claim"))
			return nil
		}
		if jsonOutput {
			printJSON(issue)
			return nil
		}
		fmt.Println(okStyle.Render("✓ claimed ") + renderIssueLine(issue))
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:     "release <id>",
	Short:   "Release a claimed issue back to the pool",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.ReleaseClaim(cmd.Context(), args[0], currentActor()); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"released": true})
			return nil
		}
		fmt.Println(okStyle.Render("✓ released ") + args[0])
		return nil
	},
}

func init() {
	claimCmd.Flags().StringVarP(&claimType, "type", "t", "", "only claim issues of this type")
	claimCmd.Flags().IntVar(&claimPMin, "priority-min", 0, "only claim priority >= this")
	claimCmd.Flags().IntVar(&claimPMax, "priority-max", 4, "only claim priority <= this")
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(releaseCmd)
}
