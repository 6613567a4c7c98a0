package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skeinhq/skein/internal/types"
)

var priorityNames = [...]string{"P0", "P1", "P2", "P3", "P4"}

func priorityLabel(p int) string {
	if p >= 0 && p < len(priorityNames) {
		return priorityNames[p]
	}
	return fmt.Sprintf("P%d", p)
}

// renderIssueLine is the one-line list format: id, priority, status, title
// and a readiness marker.
func renderIssueLine(issue *types.Issue) string {
	var b strings.Builder
	b.WriteString(idStyle.Render(issue.ID))
	b.WriteString("  ")
	b.WriteString(priorityLabel(issue.Priority))
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("%-12s", issue.Status))
	b.WriteString("  ")
	b.WriteString(issue.Title)
	if issue.Assignee != "" {
		b.WriteString(dimStyle.Render("  @" + issue.Assignee))
	}
	if issue.IsReady {
		b.WriteString("  " + okStyle.Render("ready"))
	}
	return b.String()
}

func renderIssue(issue *types.Issue) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(issue.ID+": "+issue.Title) + "\n")
	b.WriteString(fmt.Sprintf("  type: %s  status: %s (%s)  priority: %s\n",
		issue.IssueType, issue.Status, issue.StatusCategory, priorityLabel(issue.Priority)))
	if issue.Assignee != "" {
		b.WriteString("  assignee: " + issue.Assignee + "\n")
	}
	if issue.ParentID != "" {
		b.WriteString("  parent: " + issue.ParentID + "\n")
	}
	if len(issue.Labels) > 0 {
		b.WriteString("  labels: " + strings.Join(issue.Labels, ", ") + "\n")
	}
	if len(issue.Fields) > 0 {
		keys := make([]string, 0, len(issue.Fields))
		for k := range issue.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, issue.Fields[k])
		}
		b.WriteString("  fields: " + strings.Join(parts, "  ") + "\n")
	}
	if len(issue.BlockedBy) > 0 {
		b.WriteString(warnStyle.Render("  blocked by: ") + strings.Join(issue.BlockedBy, ", ") + "\n")
	}
	if len(issue.Blocks) > 0 {
		b.WriteString("  blocks: " + strings.Join(issue.Blocks, ", ") + "\n")
	}
	if len(issue.Children) > 0 {
		b.WriteString("  children: " + strings.Join(issue.Children, ", ") + "\n")
	}
	if issue.IsReady {
		b.WriteString(okStyle.Render("  ready to work") + "\n")
	}
	if issue.Description != "" {
		b.WriteString("\n" + issue.Description + "\n")
	}
	if issue.Notes != "" {
		b.WriteString("\n" + dimStyle.Render("notes: ") + issue.Notes + "\n")
	}
	if issue.ClosedAt != nil {
		line := "  closed " + issue.ClosedAt.Format("2006-01-02 15:04")
		if issue.CloseReason != "" {
			line += " (" + issue.CloseReason + ")"
		}
		b.WriteString(dimStyle.Render(line) + "\n")
	}
	return b.String()
}
