// Package storage provides shared types for issue storage.
//
// The concrete implementation lives in the sqlite sub-package. This
// package holds the interface and sentinel errors referenced by both the
// implementation and its consumers (cmd/skein, adapters), so alternative
// implementations can be substituted in tests.
package storage

import (
	"context"
	"errors"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/workflow"
)

// ErrAlreadyClaimed is returned when attempting to claim an issue that is
// already claimed. The error message contains the current assignee.
var ErrAlreadyClaimed = errors.New("issue already claimed")

// ErrNotClaimed is returned when releasing an issue that has no assignee.
var ErrNotClaimed = errors.New("issue is not claimed")

// ErrNotInitialized is returned when the store has no issue prefix
// configured (the project was never initialized).
var ErrNotInitialized = errors.New("store not initialized")

// Storage is the interface satisfied by *sqlite.Store. The store is the
// sole writer of issue state; every component reads through it.
type Storage interface {
	// Issue CRUD
	CreateIssue(ctx context.Context, issue *types.Issue, actor string) error
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error)
	UpdateIssue(ctx context.Context, id string, updates map[string]any, actor string) (*types.Issue, error)
	CloseIssue(ctx context.Context, id, reason, actor string) (*types.Issue, error)
	ReopenIssue(ctx context.Context, id, actor string) (*types.Issue, error)

	// Workflow
	Registry() *workflow.Registry
	ValidTransitions(ctx context.Context, id string) ([]types.TransitionHint, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, issueID, dependsOnID, actor string) error
	GetCriticalPath(ctx context.Context, id string) ([]types.PathNode, error)
	GetBlockedIssues(ctx context.Context) ([]*types.BlockedIssue, error)
	GetReadyIssues(ctx context.Context, limit int) ([]*types.Issue, error)
	BlockedCount(ctx context.Context) (int, error)
	ReadyCount(ctx context.Context) (int, error)

	// Claims
	ClaimNext(ctx context.Context, assignee string, filter types.ClaimFilter, actor string) (*types.Issue, error)
	ClaimIssue(ctx context.Context, id, assignee, actor string) error
	ReleaseClaim(ctx context.Context, id, actor string) error

	// Labels and comments
	AddLabel(ctx context.Context, issueID, label, actor string) error
	RemoveLabel(ctx context.Context, issueID, label, actor string) error
	AddComment(ctx context.Context, issueID, author, text string) (*types.Comment, error)
	GetComments(ctx context.Context, issueID string) ([]*types.Comment, error)

	// Events, undo, housekeeping
	GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error)
	UndoLast(ctx context.Context, issueID, actor string) (*types.UndoResult, error)
	ArchiveClosed(ctx context.Context, daysOld int, actor string) ([]string, error)
	CompactEvents(ctx context.Context, keepRecent int) (int, error)

	// Search and metrics
	SearchIssues(ctx context.Context, query string) ([]*types.Issue, error)
	GetStatistics(ctx context.Context) (*types.Statistics, error)
	GetFlowMetrics(ctx context.Context, windowDays int) (*types.FlowMetrics, error)

	// Store config
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)

	// Lifecycle
	Close() error
}
