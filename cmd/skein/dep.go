package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/types"
)

var depType string

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges between issues",
}

var depAddCmd = &cobra.Command{
	Use:     "add <id> <depends-on-id>",
	Short:   "Record that an issue is blocked by another",
	Args:    cobra.ExactArgs(2),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		dep := &types.Dependency{
			IssueID:     args[0],
			DependsOnID: args[1],
			Type:        types.DependencyType(depType),
		}
		if err := store.AddDependency(cmd.Context(), dep, currentActor()); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(dep)
			return nil
		}
		fmt.Printf("%s %s %s %s\n", okStyle.Render("✓"), args[0], dimStyle.Render("blocked by"), args[1])
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:     "remove <id> <depends-on-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.RemoveDependency(cmd.Context(), args[0], args[1], currentActor()); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"removed": true})
			return nil
		}
		fmt.Println(okStyle.Render("✓ removed"))
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:     "path <id>",
	Short:   "Show the longest chain of unresolved blockers under an issue",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := store.GetCriticalPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(path)
			return nil
		}
		for i, node := range path {
			indent := strings.Repeat("  ", i)
			arrow := ""
			if i > 0 {
				arrow = dimStyle.Render("↳ ")
			}
			fmt.Printf("%s%s%s  %s  %s\n", indent, arrow,
				idStyle.Render(node.ID), priorityLabel(node.Priority), node.Title)
		}
		return nil
	},
}

func init() {
	depAddCmd.Flags().StringVarP(&depType, "type", "t", "blocks", "edge type: blocks, related, discovered-from")
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(pathCmd)
}
