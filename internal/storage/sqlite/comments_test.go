package sqlite

import (
	"context"
	"testing"

	"github.com/skeinhq/skein/internal/types"
)

func TestComments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "discussable"})

	first, err := store.AddComment(ctx, issue.ID, "alice", "looks off to me")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected assigned comment id")
	}
	if _, err := store.AddComment(ctx, issue.ID, "bob", "agreed"); err != nil {
		t.Fatalf("add: %v", err)
	}

	comments, err := store.GetComments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("comments = %d", len(comments))
	}
	if comments[0].Author != "alice" || comments[1].Author != "bob" {
		t.Errorf("order wrong: %v, %v", comments[0].Author, comments[1].Author)
	}

	if _, err := store.AddComment(ctx, issue.ID, "alice", "   "); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("blank text: expected validation_error, got %v", err)
	}
	if _, err := store.AddComment(ctx, "sk-none", "alice", "hello"); types.CodeOf(err) != types.CodeNotFound {
		t.Errorf("unknown issue: expected not_found, got %v", err)
	}
}

func TestLabels(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "labelled"})

	if err := store.AddLabel(ctx, issue.ID, "backend", "tester"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// duplicate add is a no-op
	if err := store.AddLabel(ctx, issue.ID, "backend", "tester"); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Labels) != 1 {
		t.Errorf("labels = %v", got.Labels)
	}

	if err := store.RemoveLabel(ctx, issue.ID, "backend", "tester"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RemoveLabel(ctx, issue.ID, "backend", "tester"); types.CodeOf(err) != types.CodeNotFound {
		t.Errorf("removing absent label: expected not_found, got %v", err)
	}
}
