package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment <id> [text]",
	Short:   "Add a comment, or list comments when no text is given",
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			comment, err := store.AddComment(cmd.Context(), args[0], currentActor(), args[1])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(comment)
				return nil
			}
			fmt.Println(okStyle.Render("✓ commented on ") + args[0])
			return nil
		}

		comments, err := store.GetComments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(comments)
			return nil
		}
		if len(comments) == 0 {
			fmt.Println(dimStyle.Render("no comments"))
			return nil
		}
		for _, c := range comments {
			fmt.Printf("%s %s\n  %s\n",
				headerStyle.Render(c.Author),
				dimStyle.Render(c.CreatedAt.Format("2006-01-02 15:04")),
				c.Text)
		}
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage labels on issues",
}

var labelAddCmd = &cobra.Command{
	Use:     "add <id> <label>",
	Short:   "Attach a label to an issue",
	Args:    cobra.ExactArgs(2),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.AddLabel(cmd.Context(), args[0], args[1], currentActor()); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"labeled": true})
			return nil
		}
		fmt.Println(okStyle.Render("✓"))
		return nil
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:     "remove <id> <label>",
	Aliases: []string{"rm"},
	Short:   "Remove a label from an issue",
	Args:    cobra.ExactArgs(2),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.RemoveLabel(cmd.Context(), args[0], args[1], currentActor()); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"removed": true})
			return nil
		}
		fmt.Println(okStyle.Render("✓"))
		return nil
	},
}

func init() {
	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelRemoveCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(labelCmd)
}
