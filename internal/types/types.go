// Package types defines core data structures for the skein issue tracker.
package types

import (
	"fmt"
	"time"
)

// Category is the coarse lifecycle bucket derived from an issue's status.
// Every state declared by a workflow template is tagged with exactly one
// category, and status_category on an issue is always recomputed from the
// template when the status changes.
type Category string

// Status category constants
const (
	CategoryOpen Category = "open"
	CategoryWIP  Category = "wip"
	CategoryDone Category = "done"
)

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryOpen, CategoryWIP, CategoryDone:
		return true
	}
	return false
}

// Issue represents a trackable work item
type Issue struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Status         string         `json:"status"`
	StatusCategory Category       `json:"status_category"`
	Priority       int            `json:"priority"` // No omitempty: 0 is valid (most urgent)
	IssueType      string         `json:"type"`
	ParentID       string         `json:"parent_id,omitempty"`
	Assignee       string         `json:"assignee,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	CloseReason    string         `json:"close_reason,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
	Labels         []string       `json:"labels,omitempty"`

	// Populated on read, never written directly.
	Blocks    []string `json:"blocks,omitempty"`     // issues this one blocks
	BlockedBy []string `json:"blocked_by,omitempty"` // issues this one waits on
	IsReady   bool     `json:"is_ready"`
	Children  []string `json:"children,omitempty"`

	// Dependencies is populated only when creating an issue with edges
	// in one call; reads go through the dependency API.
	Dependencies []*Dependency `json:"dependencies,omitempty"`
}

// Validate checks structural invariants that hold regardless of template.
// Template-specific checks (status membership, field schema) live in the
// workflow package.
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return &ValidationError{Msg: "title is required"}
	}
	if len(i.Title) > 500 {
		return &ValidationError{Msg: fmt.Sprintf("title must be 500 characters or less (got %d)", len(i.Title))}
	}
	if i.Priority < 0 || i.Priority > 4 {
		return &ValidationError{Msg: fmt.Sprintf("priority must be between 0 and 4 (got %d)", i.Priority)}
	}
	if i.StatusCategory == CategoryDone && i.ClosedAt == nil {
		return &ValidationError{Msg: "done issues must have closed_at timestamp"}
	}
	if i.StatusCategory != CategoryDone && i.ClosedAt != nil {
		return &ValidationError{Msg: "non-done issues cannot have closed_at timestamp"}
	}
	return nil
}

// Dependency represents a directed edge between issues.
// IssueID is blocked by DependsOnID.
type Dependency struct {
	IssueID     string         `json:"issue_id"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by"`
}

// DependencyType categorizes the relationship
type DependencyType string

// Dependency type constants
const (
	DepBlocks         DependencyType = "blocks"
	DepRelated        DependencyType = "related"
	DepDiscoveredFrom DependencyType = "discovered-from"
)

// IsValid checks if the dependency type value is valid
func (d DependencyType) IsValid() bool {
	switch d {
	case DepBlocks, DepRelated, DepDiscoveredFrom:
		return true
	}
	return false
}

// AffectsReadiness returns true if this dependency type gates ready work.
func (d DependencyType) AffectsReadiness() bool {
	return d == DepBlocks
}

// Comment represents a comment on an issue
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Event represents an audit trail entry. Events are append-only; the only
// operation that removes rows is bulk compaction.
type Event struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

// Event type constants for the audit trail
const (
	EventCreated            EventType = "created"
	EventTitleChanged       EventType = "title_changed"
	EventDescriptionChanged EventType = "description_changed"
	EventNotesChanged       EventType = "notes_changed"
	EventStatusChanged      EventType = "status_changed"
	EventPriorityChanged    EventType = "priority_changed"
	EventAssigneeChanged    EventType = "assignee_changed"
	EventFieldChanged       EventType = "field_changed"
	EventClosed             EventType = "closed"
	EventReopened           EventType = "reopened"
	EventClaimed            EventType = "claimed"
	EventReleased           EventType = "released"
	EventCommented          EventType = "commented"
	EventDependencyAdded    EventType = "dependency_added"
	EventDependencyRemoved  EventType = "dependency_removed"
	EventLabelAdded         EventType = "label_added"
	EventLabelRemoved       EventType = "label_removed"
	EventArchived           EventType = "archived"
	EventUndone             EventType = "undone"
)

// Reversible reports whether undo can revert this event. Creation,
// comments, labels, and dependency edges are not reversible; attribute
// changes are.
func (e EventType) Reversible() bool {
	switch e {
	case EventTitleChanged, EventDescriptionChanged, EventNotesChanged,
		EventStatusChanged, EventPriorityChanged, EventAssigneeChanged,
		EventFieldChanged, EventClosed, EventReopened,
		EventClaimed, EventReleased:
		return true
	}
	return false
}

// UndoResult reports the outcome of an undo attempt. A failed undo is not
// an error: the store is intact and Reason explains why nothing was
// reverted.
type UndoResult struct {
	Undone    bool      `json:"undone"`
	Reason    string    `json:"reason,omitempty"`
	EventType EventType `json:"event_type,omitempty"`
	EventID   int64     `json:"event_id,omitempty"`
	Issue     *Issue    `json:"issue,omitempty"`
}

// TransitionHint describes one currently-available transition, attached to
// InvalidTransitionError so callers can self-correct without a second call.
type TransitionHint struct {
	To       string   `json:"to"`
	Category Category `json:"category"`
	Ready    bool     `json:"ready"`
}

// PathNode is one link in a critical path chain.
type PathNode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Priority  int    `json:"priority"`
	IssueType string `json:"type"`
}

// IssueFilter is used to filter issue list queries
type IssueFilter struct {
	Status      *string
	Category    *Category
	Priority    *int
	PriorityMin *int
	PriorityMax *int
	IssueType   *string
	Assignee    *string
	Unassigned  bool
	ParentID    *string
	Labels      []string // AND semantics: issue must have ALL these labels
	Limit       int
}

// ClaimFilter narrows the candidate pool for ClaimNext.
type ClaimFilter struct {
	IssueType   string
	PriorityMin *int
	PriorityMax *int
}

// Statistics provides aggregate metrics
type Statistics struct {
	TotalIssues     int     `json:"total_issues"`
	OpenIssues      int     `json:"open_issues"`
	WIPIssues       int     `json:"wip_issues"`
	DoneIssues      int     `json:"done_issues"`
	ReadyIssues     int     `json:"ready_issues"`
	BlockedIssues   int     `json:"blocked_issues"`
	ArchivedIssues  int     `json:"archived_issues"`
	AverageLeadTime float64 `json:"average_lead_time_hours"`
}

// FlowMetrics summarizes throughput over a recent window.
type FlowMetrics struct {
	WindowDays       int     `json:"window_days"`
	Created          int     `json:"created"`
	Closed           int     `json:"closed"`
	ThroughputPerDay float64 `json:"throughput_per_day"`
	OldestOpenHours  float64 `json:"oldest_open_hours"`
}

// BlockedIssue extends Issue with blocking information
type BlockedIssue struct {
	Issue
	BlockedByCount int      `json:"blocked_by_count"`
	BlockedByIDs   []string `json:"blocked_by"`
}
