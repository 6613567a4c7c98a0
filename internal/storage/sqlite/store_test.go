package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/workflow"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	registry, err := workflow.Load(nil)
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := New(context.Background(), path, registry)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.SetConfig(context.Background(), "issue_prefix", "sk"); err != nil {
		t.Fatalf("failed to set prefix: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store *Store, issue *types.Issue) *types.Issue {
	t.Helper()
	if err := store.CreateIssue(context.Background(), issue, "tester"); err != nil {
		t.Fatalf("failed to create issue %q: %v", issue.Title, err)
	}
	return issue
}

func TestCreateAndGetIssue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := &types.Issue{
		Title:       "Fix login timeout",
		Description: "Sessions expire too early",
		Priority:    1,
		IssueType:   "bug",
		Labels:      []string{"auth", "backend"},
	}
	mustCreate(t, store, issue)

	if issue.ID == "" {
		t.Fatal("expected generated ID")
	}
	if issue.Status != "open" {
		t.Errorf("expected initial status open, got %q", issue.Status)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("failed to get issue: %v", err)
	}
	if got.Title != "Fix login timeout" {
		t.Errorf("title = %q", got.Title)
	}
	if got.StatusCategory != types.CategoryOpen {
		t.Errorf("status_category = %q", got.StatusCategory)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "auth" {
		t.Errorf("labels = %v", got.Labels)
	}
	if !got.IsReady {
		t.Error("new unblocked open issue should be ready")
	}
	// bug template declares severity with a default
	if got.Fields["severity"] != "medium" {
		t.Errorf("severity default = %v", got.Fields["severity"])
	}
}

func TestGetIssueNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetIssue(context.Background(), "sk-zzzz")
	if types.CodeOf(err) != types.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCreateIssueValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateIssue(ctx, &types.Issue{Title: ""}, "tester"); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("empty title: expected validation_error, got %v", err)
	}
	if err := store.CreateIssue(ctx, &types.Issue{Title: "x", Priority: 9}, "tester"); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("bad priority: expected validation_error, got %v", err)
	}
	if err := store.CreateIssue(ctx, &types.Issue{Title: "x", IssueType: "nonsense"}, "tester"); types.CodeOf(err) != types.CodeNotFound {
		t.Errorf("unknown type: expected not_found, got %v", err)
	}
	err := store.CreateIssue(ctx, &types.Issue{
		Title:     "x",
		IssueType: "bug",
		Fields:    map[string]any{"severity": "catastrophic"},
	}, "tester")
	if types.CodeOf(err) != types.CodeValidation {
		t.Errorf("bad option: expected validation_error, got %v", err)
	}
}

func TestCreateIssueBadActor(t *testing.T) {
	store := setupTestStore(t)
	err := store.CreateIssue(context.Background(), &types.Issue{Title: "x"}, "agent\x00seven")
	if types.CodeOf(err) != types.CodeValidation {
		t.Fatalf("expected validation_error for control character, got %v", err)
	}
}

func TestCreateIssueExplicitID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := &types.Issue{ID: "sk-cafe", Title: "explicit id"}
	mustCreate(t, store, issue)

	dup := &types.Issue{ID: "sk-cafe", Title: "duplicate"}
	if err := store.CreateIssue(ctx, dup, "tester"); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("duplicate id: expected validation_error, got %v", err)
	}

	wrong := &types.Issue{ID: "other-1234", Title: "wrong prefix"}
	if err := store.CreateIssue(ctx, wrong, "tester"); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("wrong prefix: expected validation_error, got %v", err)
	}
}

func TestListIssuesFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &types.Issue{Title: "urgent bug", IssueType: "bug", Priority: 0})
	mustCreate(t, store, &types.Issue{Title: "normal task", IssueType: "task", Priority: 2})
	low := mustCreate(t, store, &types.Issue{Title: "backlog task", IssueType: "task", Priority: 4, Labels: []string{"later"}})

	all, err := store.ListIssues(ctx, types.IssueFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(all))
	}
	if all[0].Title != "urgent bug" {
		t.Errorf("expected priority order, got %q first", all[0].Title)
	}

	taskType := "task"
	tasks, err := store.ListIssues(ctx, types.IssueFilter{IssueType: &taskType})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(tasks))
	}

	labeled, err := store.ListIssues(ctx, types.IssueFilter{Labels: []string{"later"}})
	if err != nil {
		t.Fatalf("list by label: %v", err)
	}
	if len(labeled) != 1 || labeled[0].ID != low.ID {
		t.Errorf("expected only the labeled issue, got %d", len(labeled))
	}

	pmax := 1
	urgent, err := store.ListIssues(ctx, types.IssueFilter{PriorityMax: &pmax})
	if err != nil {
		t.Fatalf("list by priority: %v", err)
	}
	if len(urgent) != 1 {
		t.Errorf("expected 1 urgent issue, got %d", len(urgent))
	}
}

func TestUpdateIssueAttributes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "old title", IssueType: "task", Priority: 2})

	updated, err := store.UpdateIssue(ctx, issue.ID, map[string]any{
		"title":    "new title",
		"priority": 1,
		"notes":    "looked into it",
	}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "new title" || updated.Priority != 1 || updated.Notes != "looked into it" {
		t.Errorf("update not applied: %+v", updated)
	}

	events, err := store.GetEvents(ctx, issue.ID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// created + three attribute events
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
}

func TestUpdateIssueRejectsUnknownKey(t *testing.T) {
	store := setupTestStore(t)
	issue := mustCreate(t, store, &types.Issue{Title: "x"})
	_, err := store.UpdateIssue(context.Background(), issue.ID, map[string]any{"color": "red"}, "tester")
	if types.CodeOf(err) != types.CodeValidation {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestUpdateIssueBooleanPriorityRejected(t *testing.T) {
	store := setupTestStore(t)
	issue := mustCreate(t, store, &types.Issue{Title: "x"})
	_, err := store.UpdateIssue(context.Background(), issue.ID, map[string]any{"priority": true}, "tester")
	if types.CodeOf(err) != types.CodeValidation {
		t.Fatalf("expected validation_error for boolean priority, got %v", err)
	}
}

func TestStatusTransitionStrict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "strict task", IssueType: "task"})

	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "deferred"}, "tester"); err != nil {
		t.Fatalf("defer: %v", err)
	}

	// deferred -> in_progress is not declared for task
	_, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "in_progress"}, "tester")
	var ite *types.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if len(ite.Valid) == 0 {
		t.Error("expected transition hints on the error")
	}

	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "open"}, "tester"); err != nil {
		t.Fatalf("declared transition rejected: %v", err)
	}
	updated, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "in_progress"}, "tester")
	if err != nil {
		t.Fatalf("declared transition rejected: %v", err)
	}
	if updated.StatusCategory != types.CategoryWIP {
		t.Errorf("status_category = %q", updated.StatusCategory)
	}
}

func TestTransitionRequiredFieldSameCall(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story := mustCreate(t, store, &types.Issue{Title: "estimate me", IssueType: "story"})

	// story open -> in_progress requires points
	_, err := store.UpdateIssue(ctx, story.ID, map[string]any{"status": "in_progress"}, "tester")
	if types.CodeOf(err) != types.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition without points, got %v", err)
	}

	// supplying the field in the same call satisfies the gate
	updated, err := store.UpdateIssue(ctx, story.ID, map[string]any{
		"fields": map[string]any{"points": 3},
		"status": "in_progress",
	}, "tester")
	if err != nil {
		t.Fatalf("same-call field + status rejected: %v", err)
	}
	if updated.Status != "in_progress" {
		t.Errorf("status = %q", updated.Status)
	}
}

func TestSoftEnforcementFlagsNonStandard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// feature is soft-enforced; open -> closed is undeclared
	feat := mustCreate(t, store, &types.Issue{Title: "soft feature", IssueType: "feature"})
	updated, err := store.UpdateIssue(ctx, feat.ID, map[string]any{"status": "closed"}, "tester")
	if err != nil {
		t.Fatalf("soft transition rejected: %v", err)
	}
	if updated.StatusCategory != types.CategoryDone {
		t.Errorf("status_category = %q", updated.StatusCategory)
	}

	events, err := store.GetEvents(ctx, feat.ID, 1)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	ev := events[0]
	if ev.EventType != types.EventStatusChanged {
		t.Fatalf("event = %q", ev.EventType)
	}
	if ev.Comment == nil || *ev.Comment != "non-standard transition" {
		t.Errorf("expected non-standard audit comment, got %v", ev.Comment)
	}
}

func TestEnforcementNoneAllowsAnyJump(t *testing.T) {
	store := setupTestStore(t)
	chore := mustCreate(t, store, &types.Issue{Title: "free-form chore", IssueType: "chore"})
	updated, err := store.UpdateIssue(context.Background(), chore.ID, map[string]any{"status": "closed"}, "tester")
	if err != nil {
		t.Fatalf("none enforcement rejected a jump: %v", err)
	}
	if updated.ClosedAt == nil {
		t.Error("done issue should have closed_at")
	}
}

func TestCloseAndReopen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "finish me", IssueType: "task"})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "in_progress"}, "tester"); err != nil {
		t.Fatalf("start: %v", err)
	}

	closed, err := store.CloseIssue(ctx, issue.ID, "done with it", "tester")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.StatusCategory != types.CategoryDone || closed.ClosedAt == nil {
		t.Errorf("close not applied: %+v", closed)
	}
	if closed.CloseReason != "done with it" {
		t.Errorf("close_reason = %q", closed.CloseReason)
	}

	if _, err := store.CloseIssue(ctx, issue.ID, "", "tester"); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("double close: expected validation_error, got %v", err)
	}

	reopened, err := store.ReopenIssue(ctx, issue.ID, "tester")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != "open" || reopened.ClosedAt != nil || reopened.CloseReason != "" {
		t.Errorf("reopen not applied: %+v", reopened)
	}
}

func TestValidTransitions(t *testing.T) {
	store := setupTestStore(t)
	issue := mustCreate(t, store, &types.Issue{Title: "story", IssueType: "story"})

	hints, err := store.ValidTransitions(context.Background(), issue.ID)
	if err != nil {
		t.Fatalf("valid transitions: %v", err)
	}
	var found bool
	for _, h := range hints {
		if h.To == "in_progress" {
			found = true
			if h.Ready {
				t.Error("in_progress should not be ready without points")
			}
		}
	}
	if !found {
		t.Errorf("expected in_progress hint, got %v", hints)
	}
}

func TestUniqueFieldEnforced(t *testing.T) {
	ctx := context.Background()

	registry, err := workflow.Load([]string{"agile", "ops"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ops.db")
	ops, err := New(ctx, path, registry)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer ops.Close()
	if err := ops.SetConfig(ctx, "issue_prefix", "sk"); err != nil {
		t.Fatalf("prefix: %v", err)
	}

	first := &types.Issue{Title: "db down", IssueType: "incident",
		Fields: map[string]any{"ticket": "INC-100", "severity": "sev1"}}
	if err := ops.CreateIssue(ctx, first, "oncall"); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := &types.Issue{Title: "also db down", IssueType: "incident",
		Fields: map[string]any{"ticket": "INC-100", "severity": "sev2"}}
	if err := ops.CreateIssue(ctx, second, "oncall"); types.CodeOf(err) != types.CodeValidation {
		t.Fatalf("duplicate unique field: expected validation_error, got %v", err)
	}
}

func TestUniqueNumericFieldEnforced(t *testing.T) {
	ctx := context.Background()

	registry, err := workflow.Load([]string{"ops"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ops.db")
	ops, err := New(ctx, path, registry)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer ops.Close()
	if err := ops.SetConfig(ctx, "issue_prefix", "sk"); err != nil {
		t.Fatalf("prefix: %v", err)
	}

	first := &types.Issue{Title: "cache thrash", IssueType: "incident",
		Fields: map[string]any{"bridge": 4242, "severity": "sev2"}}
	if err := ops.CreateIssue(ctx, first, "oncall"); err != nil {
		t.Fatalf("create: %v", err)
	}
	// the stored field is a JSON number, so the duplicate check must
	// compare typed values rather than text
	second := &types.Issue{Title: "cache thrash again", IssueType: "incident",
		Fields: map[string]any{"bridge": 4242, "severity": "sev3"}}
	if err := ops.CreateIssue(ctx, second, "oncall"); err == nil || types.CodeOf(err) != types.CodeValidation {
		t.Fatalf("duplicate numeric field: expected validation_error, got %v", err)
	}
	third := &types.Issue{Title: "unrelated outage", IssueType: "incident",
		Fields: map[string]any{"bridge": 4243, "severity": "sev3"}}
	if err := ops.CreateIssue(ctx, third, "oncall"); err != nil {
		t.Fatalf("distinct numeric value rejected: %v", err)
	}
}

func TestStatistics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, &types.Issue{Title: "a", IssueType: "task"})
	mustCreate(t, store, &types.Issue{Title: "b", IssueType: "task"})
	if _, err := store.UpdateIssue(ctx, a.ID, map[string]any{"status": "in_progress"}, "tester"); err != nil {
		t.Fatalf("start: %v", err)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalIssues != 2 || stats.OpenIssues != 1 || stats.WIPIssues != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ReadyIssues != 1 {
		t.Errorf("ready = %d", stats.ReadyIssues)
	}
}

func TestFlowMetrics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "quick", IssueType: "chore"})
	if _, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"status": "closed"}, "tester"); err != nil {
		t.Fatalf("close: %v", err)
	}

	metrics, err := store.GetFlowMetrics(ctx, 7)
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if metrics.Created != 1 || metrics.Closed != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
	if metrics.ThroughputPerDay <= 0 {
		t.Errorf("throughput = %v", metrics.ThroughputPerDay)
	}

	if _, err := store.GetFlowMetrics(ctx, 0); types.CodeOf(err) != types.CodeValidation {
		t.Errorf("window 0: expected validation_error, got %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SetConfig(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := store.GetConfig(ctx, "greeting")
	if err != nil || v != "hello" {
		t.Fatalf("get = %q, %v", v, err)
	}
	if _, err := store.GetConfig(ctx, "missing"); types.CodeOf(err) != types.CodeNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestPrefixRequiredForCreate(t *testing.T) {
	registry, err := workflow.Load(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bare.db")
	store, err := New(context.Background(), path, registry)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()

	err = store.CreateIssue(context.Background(), &types.Issue{Title: "x"}, "tester")
	if !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestUpdatedAtAdvances(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{Title: "x"})
	before := issue.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	updated, err := store.UpdateIssue(ctx, issue.ID, map[string]any{"notes": "touched"}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.After(before) {
		t.Errorf("updated_at did not advance: %v -> %v", before, updated.UpdatedAt)
	}
}
