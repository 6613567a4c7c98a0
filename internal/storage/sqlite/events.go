package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
)

func recordEvent(ctx context.Context, ex execer, issueID string, et types.EventType, actor string, oldValue, newValue, comment *string, at time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issueID, string(et), actor, oldValue, newValue, comment, at)
	if err != nil {
		return wrapDBError("failed to record event", err)
	}
	return nil
}

// GetEvents returns an issue's audit trail, newest first. Events survive
// archival, so history for an archived issue remains readable.
func (s *Store) GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	query := `SELECT id, issue_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events WHERE issue_id = ? ORDER BY id DESC`
	args := []any{issueID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("failed to load events", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*types.Event, error) {
	var (
		ev            types.Event
		etype         string
		oldV, newV, c sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.IssueID, &etype, &ev.Actor, &oldV, &newV, &c, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.EventType = types.EventType(etype)
	if oldV.Valid {
		ev.OldValue = &oldV.String
	}
	if newV.Valid {
		ev.NewValue = &newV.String
	}
	if c.Valid {
		ev.Comment = &c.String
	}
	return &ev, nil
}

// errUndoAbort rolls the undo transaction back without surfacing an error;
// the caller reports the reason through UndoResult instead.
var errUndoAbort = errors.New("undo aborted")

// UndoLast reverts the most recent reversible event on an issue by
// reapplying the recorded old value through the same validation that
// governs forward mutations. A revert the template would reject leaves
// the store untouched and reports the reason; it is not an error.
// Repeated calls walk further back: the undone audit events and the
// events they already reverted are skipped when locating the target.
func (s *Store) UndoLast(ctx context.Context, issueID, actor string) (*types.UndoResult, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	if s.undos != nil {
		s.undos.Add(ctx, 1)
	}

	result := &types.UndoResult{}
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		// an undone event records the reverted event's id in new_value;
		// exclude both so each call steps one event further back
		row := conn.QueryRowContext(ctx, `
			SELECT id, issue_id, event_type, actor, old_value, new_value, comment, created_at
			FROM events
			WHERE issue_id = ?
			  AND event_type != 'undone'
			  AND id NOT IN (
				SELECT CAST(new_value AS INTEGER) FROM events
				WHERE issue_id = ? AND event_type = 'undone' AND new_value IS NOT NULL
			  )
			ORDER BY id DESC LIMIT 1`, issueID, issueID)
		ev, err := scanEvent(row)
		if err == sql.ErrNoRows {
			result.Reason = "no undoable events remain for this issue"
			return errUndoAbort
		}
		if err != nil {
			return wrapDBError("failed to load last event", err)
		}
		result.EventType = ev.EventType
		result.EventID = ev.ID

		if !ev.EventType.Reversible() {
			result.Reason = fmt.Sprintf("event %s is not reversible", ev.EventType)
			return errUndoAbort
		}

		cur, err := loadIssueBare(ctx, conn, issueID)
		if err != nil {
			var nf *types.NotFoundError
			if errors.As(err, &nf) {
				result.Reason = "issue no longer in the active working set"
				return errUndoAbort
			}
			return err
		}

		next := *cur
		next.Fields = cloneFields(cur.Fields)
		reason, textChanged, err := s.applyUndo(ev, &next)
		if err != nil {
			return err
		}
		if reason != "" {
			result.Reason = reason
			return errUndoAbort
		}

		now := time.Now().UTC()
		next.UpdatedAt = now
		if err := writeIssueRow(ctx, conn, &next); err != nil {
			return err
		}
		if textChanged {
			if err := updateFTS(ctx, conn, &next); err != nil {
				return err
			}
		}
		if err := recordEvent(ctx, conn, issueID, types.EventUndone, actor,
			strPtr(string(ev.EventType)), strPtr(strconv.FormatInt(ev.ID, 10)), nil, now); err != nil {
			return err
		}
		result.Undone = true
		return nil
	})
	if err != nil && !errors.Is(err, errUndoAbort) {
		return nil, err
	}
	if result.Undone {
		issue, err := s.GetIssue(ctx, issueID)
		if err != nil {
			return nil, err
		}
		result.Issue = issue
	}
	return result, nil
}

func oldOr(ev *types.Event, def string) string {
	if ev.OldValue != nil {
		return *ev.OldValue
	}
	return def
}

// applyUndo mutates next to revert ev. A non-empty reason means the revert
// cannot be applied; the transaction is then rolled back by the caller.
func (s *Store) applyUndo(ev *types.Event, next *types.Issue) (reason string, textChanged bool, err error) {
	switch ev.EventType {
	case types.EventTitleChanged:
		old := oldOr(ev, "")
		if old == "" {
			return "recorded previous title is empty", false, nil
		}
		if len(old) > 500 {
			return "recorded previous title exceeds the length limit", false, nil
		}
		next.Title = old
		return "", true, nil

	case types.EventDescriptionChanged:
		next.Description = oldOr(ev, "")
		return "", true, nil

	case types.EventNotesChanged:
		next.Notes = oldOr(ev, "")
		return "", true, nil

	case types.EventPriorityChanged:
		p, convErr := strconv.Atoi(oldOr(ev, ""))
		if convErr != nil || p < 0 || p > 4 {
			return "recorded previous priority is not valid", false, nil
		}
		next.Priority = p
		return "", false, nil

	case types.EventAssigneeChanged:
		next.Assignee = oldOr(ev, "")
		return "", false, nil

	case types.EventClaimed:
		next.Assignee = ""
		return "", false, nil

	case types.EventReleased:
		next.Assignee = oldOr(ev, "")
		return "", false, nil

	case types.EventFieldChanged:
		return s.undoFieldChange(ev, next), false, nil

	case types.EventStatusChanged, types.EventClosed, types.EventReopened:
		return s.undoStatusChange(ev, next)
	}
	return fmt.Sprintf("event %s is not reversible", ev.EventType), false, nil
}

func (s *Store) undoFieldChange(ev *types.Event, next *types.Issue) string {
	old := oldOr(ev, "")
	name, raw, found := strings.Cut(old, "=")
	if !found || name == "" {
		return "recorded field change is malformed"
	}
	tpl, err := s.registry.Get(next.IssueType)
	if err != nil {
		return fmt.Sprintf("template %s is no longer loaded", next.IssueType)
	}
	spec, ok := tpl.Field(name)
	if !ok {
		return fmt.Sprintf("field %s is no longer declared", name)
	}
	if raw == "" {
		delete(next.Fields, name)
		return ""
	}

	var value any
	switch spec.Type {
	case "int":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Sprintf("recorded value %q is not an integer", raw)
		}
		value = n
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Sprintf("recorded value %q is not a number", raw)
		}
		value = f
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Sprintf("recorded value %q is not a boolean", raw)
		}
		value = b
	case "list":
		return "list field changes cannot be reverted"
	default:
		value = raw
	}
	if err := spec.ValidateFieldValue(value); err != nil {
		return err.Error()
	}
	if next.Fields == nil {
		next.Fields = make(map[string]any)
	}
	next.Fields[name] = value
	return ""
}

func (s *Store) undoStatusChange(ev *types.Event, next *types.Issue) (string, bool, error) {
	old := oldOr(ev, "")
	if old == "" {
		return "recorded previous status is empty", false, nil
	}
	tpl, err := s.registry.Get(next.IssueType)
	if err != nil {
		return fmt.Sprintf("template %s is no longer loaded", next.IssueType), false, nil
	}
	cat, err := tpl.CategoryOf(old)
	if err != nil {
		return fmt.Sprintf("previous status %q is no longer declared", old), false, nil
	}
	has := func(name string) bool {
		v, ok := next.Fields[name]
		return ok && v != nil
	}
	if _, err := tpl.CheckTransition(next.ID, next.Status, old, has); err != nil {
		var ite *types.InvalidTransitionError
		if errors.As(err, &ite) {
			return fmt.Sprintf("reverting to %q is not a valid transition from %q", old, next.Status), false, nil
		}
		return "", false, err
	}
	next.Status = old
	next.StatusCategory = cat
	if cat == types.CategoryDone {
		now := time.Now().UTC()
		next.ClosedAt = &now
	} else {
		next.ClosedAt = nil
		next.CloseReason = ""
	}
	return "", false, nil
}

// CompactEvents trims each issue's audit trail to its newest keepRecent
// entries. This is the only operation that deletes event rows; undo
// history older than the cutoff is gone for good.
func (s *Store) CompactEvents(ctx context.Context, keepRecent int) (int, error) {
	if keepRecent < 1 {
		return 0, types.Validationf("keepRecent must be at least 1 (got %d)", keepRecent)
	}
	var deleted int
	err := s.withImmediate(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			DELETE FROM events WHERE id IN (
				SELECT id FROM (
					SELECT id, ROW_NUMBER() OVER (
						PARTITION BY issue_id ORDER BY id DESC
					) AS rn FROM events
				) WHERE rn > ?
			)`, keepRecent)
		if err != nil {
			return wrapDBError("failed to compact events", err)
		}
		n, _ := res.RowsAffected()
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
