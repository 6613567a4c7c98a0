package sqlite

import (
	"context"
	"testing"

	"github.com/skeinhq/skein/internal/types"
)

func TestUndoTitleChange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "original"})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"title": "renamed"}, "tester"); err != nil {
		t.Fatalf("update: %v", err)
	}

	result, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.Undone {
		t.Fatalf("undo refused: %s", result.Reason)
	}
	if result.EventType != types.EventTitleChanged {
		t.Errorf("event type = %q", result.EventType)
	}
	if result.Issue == nil || result.Issue.Title != "original" {
		t.Errorf("title not restored: %+v", result.Issue)
	}

	// the undo itself is audited
	events, err := store.GetEvents(ctx, issue.ID, 1)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if events[0].EventType != types.EventUndone {
		t.Errorf("latest event = %q", events[0].EventType)
	}
}

func TestUndoStatusChange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "task", IssueType: "task"})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "in_progress"}, "tester"); err != nil {
		t.Fatalf("update: %v", err)
	}

	result, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.Undone {
		t.Fatalf("undo refused: %s", result.Reason)
	}
	if result.Issue.Status != "open" || result.Issue.StatusCategory != types.CategoryOpen {
		t.Errorf("status not restored: %+v", result.Issue)
	}
}

func TestUndoFieldChange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "estimate", IssueType: "task",
		Fields: map[string]any{"estimate_minutes": 30}})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{
		"fields": map[string]any{"estimate_minutes": 90},
	}, "tester"); err != nil {
		t.Fatalf("update: %v", err)
	}

	result, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.Undone {
		t.Fatalf("undo refused: %s", result.Reason)
	}
	// fields round-trip through JSON, so numbers come back as float64
	if got := result.Issue.Fields["estimate_minutes"]; got != float64(30) {
		t.Errorf("field not restored: %v", result.Issue.Fields)
	}
}

func TestUndoTwiceWalksBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "original", Priority: 2})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"title": "renamed"}, "tester"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"priority": 0}, "tester"); err != nil {
		t.Fatalf("reprioritize: %v", err)
	}

	first, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("first undo: %v", err)
	}
	if !first.Undone || first.EventType != types.EventPriorityChanged {
		t.Fatalf("first undo = %+v", first)
	}
	if first.Issue.Priority != 2 {
		t.Errorf("priority = %d, want 2", first.Issue.Priority)
	}

	// the second undo must step past the undone audit event and the
	// priority event it reverted, landing on the title change
	second, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("second undo: %v", err)
	}
	if !second.Undone || second.EventType != types.EventTitleChanged {
		t.Fatalf("second undo = %+v", second)
	}
	if second.Issue.Title != "original" {
		t.Errorf("title = %q, want original", second.Issue.Title)
	}

	// only the creation remains, which is not reversible
	third, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("third undo: %v", err)
	}
	if third.Undone {
		t.Fatal("third undo should have nothing reversible left")
	}
}

func TestUndoIrreversibleEvent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "fresh"})

	// the newest event is the creation itself
	result, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.Undone {
		t.Fatal("creation must not be undoable")
	}
	if result.Reason == "" {
		t.Error("expected a reason for the refusal")
	}

	// a refused undo leaves the store untouched
	if _, err := store.GetIssue(ctx, issue.ID); err != nil {
		t.Fatalf("issue should still exist: %v", err)
	}
}

func TestUndoNoEvents(t *testing.T) {
	store := setupTestStore(t)
	result, err := store.UndoLast(context.Background(), "sk-none", "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.Undone {
		t.Fatal("undo of nonexistent issue must not succeed")
	}
}

func TestUndoClaim(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "claimed work"})
	if err := store.ClaimIssue(ctx, issue.ID, "agent-1", "agent-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result, err := store.UndoLast(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.Undone {
		t.Fatalf("undo refused: %s", result.Reason)
	}
	if result.Issue.Assignee != "" {
		t.Errorf("assignee = %q after undoing claim", result.Issue.Assignee)
	}
}

func TestCompactEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "busy"})
	for i := 0; i < 5; i++ {
		notes := string(rune('a' + i))
		if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"notes": notes}, "tester"); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	deleted, err := store.CompactEvents(ctx, 2)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	// created + 5 updates, keep 2
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}

	events, err := store.GetEvents(ctx, issue.ID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("remaining = %d, want 2", len(events))
	}

	if _, err := store.CompactEvents(ctx, 0); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("keep 0: expected validation_error, got %v", err)
	}
}
