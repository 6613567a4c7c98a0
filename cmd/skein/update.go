package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/types"
)

var (
	updateTitle    string
	updateDesc     string
	updateNotes    string
	updateStatus   string
	updatePriority int
	updateAssignee string
	updateFields   string
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Update issue attributes, validating any status transition",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		updates := map[string]any{}
		if cmd.Flags().Changed("title") {
			updates["title"] = updateTitle
		}
		if cmd.Flags().Changed("description") {
			updates["description"] = updateDesc
		}
		if cmd.Flags().Changed("notes") {
			updates["notes"] = updateNotes
		}
		if cmd.Flags().Changed("status") {
			updates["status"] = updateStatus
		}
		if cmd.Flags().Changed("priority") {
			updates["priority"] = updatePriority
		}
		if cmd.Flags().Changed("assignee") {
			updates["assignee"] = updateAssignee
		}
		if updateFields != "" {
			var fields map[string]any
			if err := json.Unmarshal([]byte(updateFields), &fields); err != nil {
				return types.Validationf("--fields must be a JSON object: %v", err)
			}
			updates["fields"] = fields
		}
		if len(updates) == 0 {
			return types.Validationf("nothing to update; pass at least one attribute flag")
		}

		issue, err := store.UpdateIssue(cmd.Context(), args[0], updates, currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(issue)
			return nil
		}
		fmt.Println(okStyle.Render("✓ ") + renderIssueLine(issue))
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVarP(&updateDesc, "description", "d", "", "new description")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "new notes")
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "new status (validated against the template)")
	updateCmd.Flags().IntVarP(&updatePriority, "priority", "p", 0, "new priority")
	updateCmd.Flags().StringVarP(&updateAssignee, "assignee", "a", "", "new assignee (empty string unassigns)")
	updateCmd.Flags().StringVar(&updateFields, "fields", "", "field changes as a JSON object (null removes a field)")
	rootCmd.AddCommand(updateCmd)
}
