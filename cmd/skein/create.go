package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/types"
)

var (
	createType     string
	createPriority int
	createDesc     string
	createParent   string
	createLabels   []string
	createBlockers []string
	createFields   string
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Aliases: []string{"new"},
	Short:   "Create a new issue",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue := &types.Issue{
			Title:       args[0],
			Description: createDesc,
			Priority:    createPriority,
			IssueType:   createType,
			ParentID:    createParent,
			Labels:      createLabels,
		}
		if createFields != "" {
			if err := json.Unmarshal([]byte(createFields), &issue.Fields); err != nil {
				return types.Validationf("--fields must be a JSON object: %v", err)
			}
		}
		for _, blocker := range createBlockers {
			issue.Dependencies = append(issue.Dependencies, &types.Dependency{
				DependsOnID: blocker,
				Type:        types.DepBlocks,
			})
		}

		if err := store.CreateIssue(cmd.Context(), issue, currentActor()); err != nil {
			return err
		}
		created, err := store.GetIssue(cmd.Context(), issue.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(created)
			return nil
		}
		fmt.Println(okStyle.Render("✓ ") + renderIssueLine(created))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", "task", "issue type (template name)")
	createCmd.Flags().IntVarP(&createPriority, "priority", "p", 2, "priority 0 (urgent) to 4 (someday)")
	createCmd.Flags().StringVarP(&createDesc, "description", "d", "", "longer description")
	createCmd.Flags().StringVar(&createParent, "parent", "", "parent issue id (epic membership)")
	createCmd.Flags().StringSliceVarP(&createLabels, "label", "l", nil, "labels to attach")
	createCmd.Flags().StringSliceVar(&createBlockers, "blocked-by", nil, "issue ids this one must wait on")
	createCmd.Flags().StringVar(&createFields, "fields", "", "template fields as a JSON object")
	rootCmd.AddCommand(createCmd)
}
