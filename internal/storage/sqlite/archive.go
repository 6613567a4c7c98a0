package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
)

// ArchiveClosed moves issues closed at least daysOld days ago into cold
// storage, returning the archived ids. Labels fold into the archived row;
// events and comments stay where they are, keyed by issue id. Dependency
// edges touching an archived issue cascade away, which cannot change any
// readiness answer because an archived issue is by definition done.
func (s *Store) ArchiveClosed(ctx context.Context, daysOld int, actor string) ([]string, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	if daysOld < 0 {
		return nil, types.Validationf("daysOld must not be negative (got %d)", daysOld)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	var archived []string
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		ids, err := queryIDs(ctx, conn, `
			SELECT id FROM issues
			WHERE status_category = 'done' AND closed_at <= ?
			ORDER BY id`, cutoff)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, id := range ids {
			labels, err := loadLabels(ctx, conn, id)
			if err != nil {
				return err
			}
			labelsJS, err := json.Marshal(labels)
			if err != nil {
				return fmt.Errorf("failed to marshal labels: %w", err)
			}
			if labels == nil {
				labelsJS = []byte("[]")
			}

			if _, err := conn.ExecContext(ctx, `
				INSERT INTO archived_issues (id, title, description, notes,
					status, status_category, priority, issue_type, parent_id,
					assignee, fields, labels, close_reason, created_at,
					updated_at, closed_at, archived_at)
				SELECT id, title, description, notes, status, status_category,
					priority, issue_type, parent_id, assignee, fields, ?,
					close_reason, created_at, updated_at, closed_at, ?
				FROM issues WHERE id = ?`,
				string(labelsJS), now, id); err != nil {
				return wrapDBError("failed to archive issue", err)
			}

			// Deleting the row cascades dependency edges and labels; the
			// search index row goes explicitly since FTS has no FK.
			if _, err := conn.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
				return wrapDBError("failed to remove archived issue", err)
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM issues_fts WHERE id = ?`, id); err != nil {
				return wrapDBError("failed to deindex archived issue", err)
			}
			if err := recordEvent(ctx, conn, id, types.EventArchived, actor,
				nil, nil, nil, now); err != nil {
				return err
			}
		}
		archived = ids
		s.countMutation(ctx, "archive")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}
