package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
)

// AddComment appends a comment and its audit event. Comments have no
// foreign key so they stay readable after the issue is archived, but a
// comment may only be added while the issue is in the active set.
func (s *Store) AddComment(ctx context.Context, issueID, author, text string) (*types.Comment, error) {
	author, err := validation.Actor(author)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.Validationf("comment text must not be empty")
	}

	var comment *types.Comment
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		if _, err := loadIssueBare(ctx, conn, issueID); err != nil {
			return err
		}
		now := time.Now().UTC()
		res, err := conn.ExecContext(ctx, `
			INSERT INTO comments (issue_id, author, text, created_at)
			VALUES (?, ?, ?, ?)`, issueID, author, text, now)
		if err != nil {
			return wrapDBError("failed to insert comment", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("failed to read comment id", err)
		}
		if err := recordEvent(ctx, conn, issueID, types.EventCommented, author,
			nil, nil, strPtr(text), now); err != nil {
			return err
		}
		comment = &types.Comment{
			ID:        id,
			IssueID:   issueID,
			Author:    author,
			Text:      text,
			CreatedAt: now,
		}
		s.countMutation(ctx, "comment")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// GetComments returns an issue's comments, oldest first.
func (s *Store) GetComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at
		FROM comments WHERE issue_id = ? ORDER BY id ASC`, issueID)
	if err != nil {
		return nil, wrapDBError("failed to load comments", err)
	}
	defer rows.Close()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// AddLabel attaches a label to an issue. Adding a label twice is a no-op.
func (s *Store) AddLabel(ctx context.Context, issueID, label, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return types.Validationf("label must not be empty")
	}
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		if _, err := loadIssueBare(ctx, conn, issueID); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`,
			issueID, label)
		if err != nil {
			return wrapDBError("failed to add label", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil
		}
		if err := recordEvent(ctx, conn, issueID, types.EventLabelAdded, actor,
			nil, strPtr(label), nil, time.Now().UTC()); err != nil {
			return err
		}
		s.countMutation(ctx, "label_add")
		return nil
	})
}

// RemoveLabel detaches a label. Removing an absent label is an error so
// typos surface.
func (s *Store) RemoveLabel(ctx context.Context, issueID, label, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM labels WHERE issue_id = ? AND label = ?`, issueID, label)
		if err != nil {
			return wrapDBError("failed to remove label", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return &types.NotFoundError{Kind: "label", ID: label}
		}
		if err := recordEvent(ctx, conn, issueID, types.EventLabelRemoved, actor,
			strPtr(label), nil, nil, time.Now().UTC()); err != nil {
			return err
		}
		s.countMutation(ctx, "label_remove")
		return nil
	})
}
