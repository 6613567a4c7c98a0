package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skeinhq/skein/internal/storage"
	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
)

var _ storage.Storage = (*Store)(nil)

// ClaimNext atomically hands the best ready unassigned issue to assignee.
// Selection and assignment share one immediate transaction, so two agents
// calling concurrently always receive different issues. An exhausted pool
// returns (nil, nil): nothing to do is a normal outcome, not an error.
func (s *Store) ClaimNext(ctx context.Context, assignee string, filter types.ClaimFilter, actor string) (*types.Issue, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	assignee, err = validation.Actor(assignee)
	if err != nil {
		return nil, err
	}

	var claimedID string
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		query := `SELECT i.id FROM issues i
			WHERE ` + readyPredicate + `
			  AND i.assignee = ''`
		var args []any
		if filter.IssueType != "" {
			query += " AND i.issue_type = ?"
			args = append(args, filter.IssueType)
		}
		if filter.PriorityMin != nil {
			query += " AND i.priority >= ?"
			args = append(args, *filter.PriorityMin)
		}
		if filter.PriorityMax != nil {
			query += " AND i.priority <= ?"
			args = append(args, *filter.PriorityMax)
		}
		query += " ORDER BY i.priority ASC, i.created_at ASC, i.id ASC LIMIT 1"

		err := conn.QueryRowContext(ctx, query, args...).Scan(&claimedID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return wrapDBError("failed to select claim candidate", err)
		}

		return claimConn(ctx, conn, claimedID, assignee, actor)
	})
	if err != nil {
		return nil, err
	}
	if claimedID == "" {
		if s.claimsEmpty != nil {
			s.claimsEmpty.Add(ctx, 1)
		}
		return nil, nil
	}
	if s.claimsWon != nil {
		s.claimsWon.Add(ctx, 1)
	}
	return s.GetIssue(ctx, claimedID)
}

// ClaimIssue assigns a specific unassigned issue to assignee. A lost race
// surfaces as ErrAlreadyClaimed naming the current holder.
func (s *Store) ClaimIssue(ctx context.Context, id, assignee, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	assignee, err = validation.Actor(assignee)
	if err != nil {
		return err
	}
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		cur, err := loadIssueBare(ctx, conn, id)
		if err != nil {
			return err
		}
		if cur.StatusCategory == types.CategoryDone {
			return types.Validationf("issue %s is closed and cannot be claimed", id)
		}
		if cur.Assignee != "" {
			return fmt.Errorf("%w: %s is held by %s", storage.ErrAlreadyClaimed, id, cur.Assignee)
		}
		return claimConn(ctx, conn, id, assignee, actor)
	})
	if err != nil {
		return err
	}
	if s.claimsWon != nil {
		s.claimsWon.Add(ctx, 1)
	}
	return nil
}

// claimConn performs the compare-and-set assignment inside the caller's
// transaction. The assignee guard in the WHERE clause is the last line of
// defense; under BEGIN IMMEDIATE it cannot actually lose.
func claimConn(ctx context.Context, conn *sql.Conn, id, assignee, actor string) error {
	now := time.Now().UTC()
	res, err := conn.ExecContext(ctx,
		`UPDATE issues SET assignee = ?, updated_at = ? WHERE id = ? AND assignee = ''`,
		assignee, now, id)
	if err != nil {
		return wrapDBError("failed to claim issue", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyClaimed, id)
	}
	return recordEvent(ctx, conn, id, types.EventClaimed, actor,
		nil, strPtr(assignee), nil, now)
}

// ReleaseClaim clears the assignee so the issue returns to the claimable
// pool. Releasing an unclaimed issue is an error so agents notice dropped
// state.
func (s *Store) ReleaseClaim(ctx context.Context, id, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		cur, err := loadIssueBare(ctx, conn, id)
		if err != nil {
			return err
		}
		if cur.Assignee == "" {
			return fmt.Errorf("%w: %s", storage.ErrNotClaimed, id)
		}
		now := time.Now().UTC()
		if _, err := conn.ExecContext(ctx,
			`UPDATE issues SET assignee = '', updated_at = ? WHERE id = ?`,
			now, id); err != nil {
			return wrapDBError("failed to release claim", err)
		}
		if err := recordEvent(ctx, conn, id, types.EventReleased, actor,
			strPtr(cur.Assignee), nil, nil, now); err != nil {
			return err
		}
		s.countMutation(ctx, "release")
		return nil
	})
}
