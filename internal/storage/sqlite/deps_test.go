package sqlite

import (
	"context"
	"testing"

	"github.com/skeinhq/skein/internal/types"
)

func link(t *testing.T, store *Store, blocked, blocker string) {
	t.Helper()
	err := store.AddDependency(context.Background(), &types.Dependency{
		IssueID:     blocked,
		DependsOnID: blocker,
		Type:        types.DepBlocks,
	}, "tester")
	if err != nil {
		t.Fatalf("failed to link %s -> %s: %v", blocked, blocker, err)
	}
}

func TestDependencyBlocksReadiness(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	blocker := mustCreate(t, store, &types.Issue{Title: "build schema"})
	blocked := mustCreate(t, store, &types.Issue{Title: "write queries"})
	link(t, store, blocked.ID, blocker.ID)

	got, err := store.GetIssue(ctx, blocked.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsReady {
		t.Error("blocked issue should not be ready")
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != blocker.ID {
		t.Errorf("blocked_by = %v", got.BlockedBy)
	}

	up, err := store.GetIssue(ctx, blocker.ID)
	if err != nil {
		t.Fatalf("get blocker: %v", err)
	}
	if len(up.Blocks) != 1 || up.Blocks[0] != blocked.ID {
		t.Errorf("blocks = %v", up.Blocks)
	}

	// closing the blocker frees the blocked issue
	if _, err := store.CloseIssue(ctx, blocker.ID, "", "tester"); err != nil {
		t.Fatalf("close blocker: %v", err)
	}
	got, err = store.GetIssue(ctx, blocked.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsReady {
		t.Error("issue should be ready once its only blocker is done")
	}
}

func TestRelatedEdgeDoesNotBlock(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, &types.Issue{Title: "a"})
	b := mustCreate(t, store, &types.Issue{Title: "b"})
	err := store.AddDependency(ctx, &types.Dependency{
		IssueID: b.ID, DependsOnID: a.ID, Type: types.DepRelated,
	}, "tester")
	if err != nil {
		t.Fatalf("add related: %v", err)
	}

	got, err := store.GetIssue(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsReady {
		t.Error("related edges must not gate readiness")
	}
}

func TestCycleRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, &types.Issue{Title: "a"})
	b := mustCreate(t, store, &types.Issue{Title: "b"})
	c := mustCreate(t, store, &types.Issue{Title: "c"})
	link(t, store, a.ID, b.ID)
	link(t, store, b.ID, c.ID)

	// c -> a would close the loop a -> b -> c -> a
	err := store.AddDependency(ctx, &types.Dependency{
		IssueID: c.ID, DependsOnID: a.ID,
	}, "tester")
	if types.CodeOf(err) != types.CodeCycleDetected {
		t.Fatalf("expected cycle_detected, got %v", err)
	}

	// graph must be untouched: the edge set on c is still empty
	got, err := store.GetIssue(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.BlockedBy) != 0 {
		t.Errorf("rejected edge was persisted: %v", got.BlockedBy)
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	store := setupTestStore(t)
	a := mustCreate(t, store, &types.Issue{Title: "a"})
	err := store.AddDependency(context.Background(), &types.Dependency{
		IssueID: a.ID, DependsOnID: a.ID,
	}, "tester")
	if types.CodeOf(err) != types.CodeCycleDetected {
		t.Fatalf("expected cycle_detected for self edge, got %v", err)
	}
}

func TestRemoveDependencyRestoresReadiness(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	blocker := mustCreate(t, store, &types.Issue{Title: "blocker"})
	blocked := mustCreate(t, store, &types.Issue{Title: "blocked"})
	link(t, store, blocked.ID, blocker.ID)

	if err := store.RemoveDependency(ctx, blocked.ID, blocker.ID, "tester"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := store.GetIssue(ctx, blocked.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsReady {
		t.Error("issue should be ready after its edge is removed")
	}

	err = store.RemoveDependency(ctx, blocked.ID, blocker.ID, "tester")
	if types.CodeOf(err) != types.CodeNotFound {
		t.Errorf("removing absent edge: expected not_found, got %v", err)
	}
}

func TestCriticalPath(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// deploy <- migrate <- schema, plus a shallow branch deploy <- docs
	schema := mustCreate(t, store, &types.Issue{Title: "design schema"})
	migrate := mustCreate(t, store, &types.Issue{Title: "write migration"})
	docs := mustCreate(t, store, &types.Issue{Title: "update docs"})
	deploy := mustCreate(t, store, &types.Issue{Title: "deploy"})
	link(t, store, migrate.ID, schema.ID)
	link(t, store, deploy.ID, migrate.ID)
	link(t, store, deploy.ID, docs.ID)

	path, err := store.GetCriticalPath(ctx, deploy.ID)
	if err != nil {
		t.Fatalf("critical path: %v", err)
	}
	want := []string{deploy.ID, migrate.ID, schema.ID}
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d (%v)", len(path), len(want), path)
	}
	for i, node := range path {
		if node.ID != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, node.ID, want[i])
		}
	}

	// resolving the deep branch shifts the path to the shallow one
	if _, err := store.CloseIssue(ctx, schema.ID, "", "tester"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := store.CloseIssue(ctx, migrate.ID, "", "tester"); err != nil {
		t.Fatalf("close: %v", err)
	}
	path, err = store.GetCriticalPath(ctx, deploy.ID)
	if err != nil {
		t.Fatalf("critical path: %v", err)
	}
	if len(path) != 2 || path[1].ID != docs.ID {
		t.Errorf("path after closures = %v", path)
	}
}

func TestBlockedAndReadyLists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	free := mustCreate(t, store, &types.Issue{Title: "free", Priority: 1})
	blocker := mustCreate(t, store, &types.Issue{Title: "blocker", Priority: 3})
	blocked := mustCreate(t, store, &types.Issue{Title: "blocked", Priority: 0})
	link(t, store, blocked.ID, blocker.ID)

	ready, err := store.GetReadyIssues(ctx, 0)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if len(ready) != 2 {
		t.Fatalf("ready = %d, want 2", len(ready))
	}
	if ready[0].ID != free.ID {
		t.Errorf("expected priority order, got %s first", ready[0].ID)
	}

	blockedList, err := store.GetBlockedIssues(ctx)
	if err != nil {
		t.Fatalf("blocked: %v", err)
	}
	if len(blockedList) != 1 || blockedList[0].ID != blocked.ID {
		t.Fatalf("blocked list = %v", blockedList)
	}
	if blockedList[0].BlockedByCount != 1 || blockedList[0].BlockedByIDs[0] != blocker.ID {
		t.Errorf("blocker info = %+v", blockedList[0])
	}

	n, err := store.ReadyCount(ctx)
	if err != nil || n != 2 {
		t.Errorf("ready count = %d, %v", n, err)
	}
	n, err = store.BlockedCount(ctx)
	if err != nil || n != 1 {
		t.Errorf("blocked count = %d, %v", n, err)
	}
}

func TestCreateIssueWithInlineDependencies(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := mustCreate(t, store, &types.Issue{Title: "base"})
	issue := &types.Issue{
		Title:        "follow-up",
		Dependencies: []*types.Dependency{{DependsOnID: base.ID}},
	}
	mustCreate(t, store, issue)

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != base.ID {
		t.Errorf("blocked_by = %v", got.BlockedBy)
	}
	if got.IsReady {
		t.Error("issue created with an open blocker should not be ready")
	}
}

func TestDependencyUnknownIssue(t *testing.T) {
	store := setupTestStore(t)
	a := mustCreate(t, store, &types.Issue{Title: "a"})
	err := store.AddDependency(context.Background(), &types.Dependency{
		IssueID: a.ID, DependsOnID: "sk-none",
	}, "tester")
	if types.CodeOf(err) != types.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
