package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/types"
)

var (
	listStatus     string
	listCategory   string
	listType       string
	listAssignee   string
	listUnassigned bool
	listParent     string
	listLabels     []string
	listPriority   int
	listLimit      int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues matching filters",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.IssueFilter{
			Unassigned: listUnassigned,
			Labels:     listLabels,
			Limit:      listLimit,
		}
		if listStatus != "" {
			filter.Status = &listStatus
		}
		if listCategory != "" {
			cat := types.Category(listCategory)
			if !cat.IsValid() {
				return types.Validationf("invalid category %q (open, wip, done)", listCategory)
			}
			filter.Category = &cat
		}
		if listType != "" {
			filter.IssueType = &listType
		}
		if listAssignee != "" {
			filter.Assignee = &listAssignee
		}
		if listParent != "" {
			filter.ParentID = &listParent
		}
		if cmd.Flags().Changed("priority") {
			filter.Priority = &listPriority
		}

		issues, err := store.ListIssues(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issues)
			return nil
		}
		if len(issues) == 0 {
			fmt.Println(dimStyle.Render("no matching issues"))
			return nil
		}
		for _, issue := range issues {
			fmt.Println(renderIssueLine(issue))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by exact status")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "filter by category (open, wip, done)")
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "filter by issue type")
	listCmd.Flags().StringVarP(&listAssignee, "assignee", "a", "", "filter by assignee")
	listCmd.Flags().BoolVar(&listUnassigned, "unassigned", false, "only unassigned issues")
	listCmd.Flags().StringVar(&listParent, "parent", "", "filter by parent issue")
	listCmd.Flags().StringSliceVarP(&listLabels, "label", "l", nil, "require all of these labels")
	listCmd.Flags().IntVarP(&listPriority, "priority", "p", 0, "filter by exact priority")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum results")
	rootCmd.AddCommand(listCmd)
}
