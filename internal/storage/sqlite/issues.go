package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skeinhq/skein/internal/idgen"
	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
	"github.com/skeinhq/skein/internal/workflow"
)

// issueColumns is the canonical select list for issue rows; keep in sync
// with scanIssue.
const issueColumns = `id, title, description, notes, status, status_category,
	priority, issue_type, parent_id, assignee, fields, close_reason,
	created_at, updated_at, closed_at`

// issueColumnsPrefixed qualifies issueColumns with the i alias for joins
// against tables that carry overlapping column names (issues_fts also has
// id, title, description and notes).
const issueColumnsPrefixed = `i.id, i.title, i.description, i.notes, i.status, i.status_category,
	i.priority, i.issue_type, i.parent_id, i.assignee, i.fields, i.close_reason,
	i.created_at, i.updated_at, i.closed_at`

// readyPredicate selects open-category issues with no unresolved blocker.
// Only 'blocks' edges gate readiness; related and discovered-from edges
// are informational. The alias i must be bound by the enclosing query.
const readyPredicate = `i.status_category = 'open'
	AND NOT EXISTS (
		SELECT 1 FROM dependencies d
		JOIN issues b ON b.id = d.depends_on_id
		WHERE d.issue_id = i.id
		  AND d.type = 'blocks'
		  AND b.status_category != 'done'
	)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var (
		i        types.Issue
		parentID sql.NullString
		fieldsJS string
		closedAt sql.NullTime
	)
	err := row.Scan(&i.ID, &i.Title, &i.Description, &i.Notes, &i.Status,
		&i.StatusCategory, &i.Priority, &i.IssueType, &parentID, &i.Assignee,
		&fieldsJS, &i.CloseReason, &i.CreatedAt, &i.UpdatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		i.ParentID = parentID.String
	}
	if closedAt.Valid {
		t := closedAt.Time
		i.ClosedAt = &t
	}
	if fieldsJS != "" && fieldsJS != "{}" {
		if err := json.Unmarshal([]byte(fieldsJS), &i.Fields); err != nil {
			return nil, fmt.Errorf("corrupt fields JSON on %s: %w", i.ID, err)
		}
	}
	return &i, nil
}

func marshalFields(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// CreateIssue inserts a new issue, its labels, and any dependency edges
// supplied inline, all in one transaction. An empty ID is filled by the
// hash generator; a caller-supplied ID must carry the project prefix.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	if issue == nil {
		return types.Validationf("issue is required")
	}
	if issue.IssueType == "" {
		issue.IssueType = "task"
	}
	tpl, err := s.registry.Get(issue.IssueType)
	if err != nil {
		return err
	}
	if issue.Status == "" {
		issue.Status = tpl.Initial
	}
	cat, err := tpl.CategoryOf(issue.Status)
	if err != nil {
		return err
	}
	issue.StatusCategory = cat

	issue.Fields = tpl.ApplyDefaults(issue.Fields)
	if err := tpl.ValidateFields(issue.Fields); err != nil {
		return err
	}

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	if cat == types.CategoryDone && issue.ClosedAt == nil {
		issue.ClosedAt = &now
	}
	if err := issue.Validate(); err != nil {
		return err
	}
	for _, dep := range issue.Dependencies {
		if dep.Type == "" {
			dep.Type = types.DepBlocks
		}
		if !dep.Type.IsValid() {
			return types.Validationf("invalid dependency type %q", dep.Type)
		}
	}

	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		prefix, err := s.prefixConn(ctx, conn)
		if err != nil {
			return err
		}

		if issue.ID != "" {
			if err := idgen.ValidatePrefix(issue.ID, prefix); err != nil {
				return types.Validationf("%v", err)
			}
			taken, err := idExists(ctx, conn, issue.ID)
			if err != nil {
				return err
			}
			if taken {
				return types.Validationf("issue %s already exists", issue.ID)
			}
		} else {
			id, err := generateFreeID(ctx, conn, prefix, issue.Title, actor, issue.CreatedAt)
			if err != nil {
				return err
			}
			issue.ID = id
		}

		if err := s.checkUniqueFields(ctx, conn, tpl, issue.ID, issue.Fields); err != nil {
			return err
		}

		fieldsJS, err := marshalFields(issue.Fields)
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO issues (id, title, description, notes, status,
				status_category, priority, issue_type, parent_id, assignee,
				fields, close_reason, created_at, updated_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.Title, issue.Description, issue.Notes, issue.Status,
			issue.StatusCategory, issue.Priority, issue.IssueType,
			nullableID(issue.ParentID), issue.Assignee, fieldsJS,
			issue.CloseReason, issue.CreatedAt, issue.UpdatedAt, issue.ClosedAt)
		if err != nil {
			return wrapDBError("failed to insert issue", err)
		}

		if _, err := conn.ExecContext(ctx,
			`INSERT INTO issues_fts (id, title, description, notes) VALUES (?, ?, ?, ?)`,
			issue.ID, issue.Title, issue.Description, issue.Notes); err != nil {
			return wrapDBError("failed to index issue", err)
		}

		for _, label := range issue.Labels {
			if _, err := conn.ExecContext(ctx,
				`INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`,
				issue.ID, label); err != nil {
				return wrapDBError("failed to insert label", err)
			}
		}

		if err := recordEvent(ctx, conn, issue.ID, types.EventCreated, actor,
			nil, strPtr(issue.Title), nil, now); err != nil {
			return err
		}

		for _, dep := range issue.Dependencies {
			dep.IssueID = issue.ID
			dep.CreatedAt = now
			dep.CreatedBy = actor
			if err := addDependencyConn(ctx, conn, dep, actor, now); err != nil {
				return err
			}
		}

		s.countMutation(ctx, "create")
		return nil
	})
}

func idExists(ctx context.Context, q querier, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM issues WHERE id = ?) +
		       (SELECT count(*) FROM archived_issues WHERE id = ?)`, id, id).Scan(&n)
	if err != nil {
		return false, wrapDBError("failed to check id", err)
	}
	return n > 0, nil
}

// generateFreeID walks the nonce/length escalation until an unused hash ID
// is found. Collisions at the minimum length are rare; running off the end
// of the search space means something is badly wrong with the store.
func generateFreeID(ctx context.Context, q querier, prefix, title, creator string, ts time.Time) (string, error) {
	for length := idgen.MinLength; length <= idgen.MaxLength; length++ {
		for nonce := 0; nonce < 5; nonce++ {
			id := idgen.Generate(prefix, title, creator, ts, length, nonce)
			taken, err := idExists(ctx, q, id)
			if err != nil {
				return "", err
			}
			if !taken {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("failed to generate a unique issue ID after exhausting nonce space")
}

// checkUniqueFields enforces unique:true field schema entries against the
// rest of the active working set.
func (s *Store) checkUniqueFields(ctx context.Context, q querier, tpl *workflow.Template, issueID string, fields map[string]any) error {
	for name, value := range fields {
		spec, ok := tpl.Field(name)
		if !ok || !spec.Unique || value == nil {
			continue
		}
		// json_extract yields a typed value; the comparison must bind the
		// raw value, not its string form
		var n int
		err := q.QueryRowContext(ctx, `
			SELECT count(*) FROM issues
			WHERE id != ? AND issue_type = ?
			  AND json_extract(fields, '$.' || ?) = ?`,
			issueID, tpl.Name, name, value).Scan(&n)
		if err != nil {
			return wrapDBError("failed to check field uniqueness", err)
		}
		if n > 0 {
			return types.Validationf("field %s value %v is already used by another %s", name, value, tpl.Name)
		}
	}
	return nil
}

// GetIssue returns an issue with its read-side decorations: labels, block
// edges in both directions, children, and the readiness flag.
func (s *Store) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	return s.getIssue(ctx, s.db, id)
}

func (s *Store) getIssue(ctx context.Context, q querier, id string) (*types.Issue, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "issue", ID: id}
	}
	if err != nil {
		return nil, wrapDBError("failed to load issue", err)
	}

	if issue.Labels, err = loadLabels(ctx, q, id); err != nil {
		return nil, err
	}
	if issue.BlockedBy, err = queryIDs(ctx, q,
		`SELECT depends_on_id FROM dependencies WHERE issue_id = ? AND type = 'blocks' ORDER BY depends_on_id`, id); err != nil {
		return nil, err
	}
	if issue.Blocks, err = queryIDs(ctx, q,
		`SELECT issue_id FROM dependencies WHERE depends_on_id = ? AND type = 'blocks' ORDER BY issue_id`, id); err != nil {
		return nil, err
	}
	if issue.Children, err = queryIDs(ctx, q,
		`SELECT id FROM issues WHERE parent_id = ? ORDER BY id`, id); err != nil {
		return nil, err
	}

	var ready int
	if err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM issues i WHERE i.id = ? AND `+readyPredicate, id).Scan(&ready); err != nil {
		return nil, wrapDBError("failed to compute readiness", err)
	}
	issue.IsReady = ready > 0
	return issue, nil
}

// loadIssueBare reads an issue row without decorations, for use inside
// write transactions.
func loadIssueBare(ctx context.Context, q querier, id string) (*types.Issue, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "issue", ID: id}
	}
	if err != nil {
		return nil, wrapDBError("failed to load issue", err)
	}
	return issue, nil
}

func loadLabels(ctx context.Context, q querier, id string) ([]string, error) {
	return queryIDs(ctx, q, `SELECT label FROM labels WHERE issue_id = ? ORDER BY label`, id)
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query failed", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListIssues returns issues matching the filter, ordered by priority then
// age then id so output is stable across runs.
func (s *Store) ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		where = append(where, "i.status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		where = append(where, "i.status_category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.Priority != nil {
		where = append(where, "i.priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.PriorityMin != nil {
		where = append(where, "i.priority >= ?")
		args = append(args, *filter.PriorityMin)
	}
	if filter.PriorityMax != nil {
		where = append(where, "i.priority <= ?")
		args = append(args, *filter.PriorityMax)
	}
	if filter.IssueType != nil {
		where = append(where, "i.issue_type = ?")
		args = append(args, *filter.IssueType)
	}
	if filter.Unassigned {
		where = append(where, "i.assignee = ''")
	} else if filter.Assignee != nil {
		where = append(where, "i.assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if filter.ParentID != nil {
		where = append(where, "i.parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	for _, label := range filter.Labels {
		where = append(where, "EXISTS (SELECT 1 FROM labels l WHERE l.issue_id = i.id AND l.label = ?)")
		args = append(args, label)
	}

	query := `SELECT ` + issueColumns + ` FROM issues i`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.priority ASC, i.created_at ASC, i.id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryIssues(ctx, query, args...)
}

func (s *Store) queryIssues(ctx context.Context, query string, args ...any) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("failed to list issues", err)
	}
	defer rows.Close()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// updateOrder fixes the application order of a multi-key update so that
// field values written in the same call are visible to the transition
// check that runs when status is applied last.
var updateOrder = []string{"title", "description", "notes", "priority", "fields", "assignee", "status"}

// UpdateIssue applies a partial update, recording one audit event per
// changed attribute. Status is applied last so a single call can both
// populate a required field and take the transition gated on it. The
// returned issue carries read-side decorations.
func (s *Store) UpdateIssue(ctx context.Context, id string, updates map[string]any, actor string) (*types.Issue, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, types.Validationf("no updates provided")
	}
	for key := range updates {
		known := false
		for _, k := range updateOrder {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return nil, types.Validationf("unknown update key %q", key)
		}
	}

	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		cur, err := loadIssueBare(ctx, conn, id)
		if err != nil {
			return err
		}
		tpl, err := s.registry.Get(cur.IssueType)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		next := *cur
		next.Fields = cloneFields(cur.Fields)

		type pendingEvent struct {
			etype    types.EventType
			old, new *string
			comment  *string
		}
		var events []pendingEvent
		textChanged := false

		for _, key := range updateOrder {
			value, ok := updates[key]
			if !ok {
				continue
			}
			switch key {
			case "title":
				t, ok := value.(string)
				if !ok {
					return types.Validationf("title must be a string (got %T)", value)
				}
				if t == cur.Title {
					continue
				}
				events = append(events, pendingEvent{types.EventTitleChanged, strPtr(cur.Title), strPtr(t), nil})
				next.Title = t
				textChanged = true
			case "description":
				d, ok := value.(string)
				if !ok {
					return types.Validationf("description must be a string (got %T)", value)
				}
				if d == cur.Description {
					continue
				}
				events = append(events, pendingEvent{types.EventDescriptionChanged, strPtr(cur.Description), strPtr(d), nil})
				next.Description = d
				textChanged = true
			case "notes":
				n, ok := value.(string)
				if !ok {
					return types.Validationf("notes must be a string (got %T)", value)
				}
				if n == cur.Notes {
					continue
				}
				events = append(events, pendingEvent{types.EventNotesChanged, strPtr(cur.Notes), strPtr(n), nil})
				next.Notes = n
				textChanged = true
			case "priority":
				p, err := validation.Priority(value)
				if err != nil {
					return err
				}
				if p == cur.Priority {
					continue
				}
				events = append(events, pendingEvent{types.EventPriorityChanged,
					strPtr(fmt.Sprint(cur.Priority)), strPtr(fmt.Sprint(p)), nil})
				next.Priority = p
			case "fields":
				patch, ok := value.(map[string]any)
				if !ok {
					return types.Validationf("fields must be an object (got %T)", value)
				}
				for name, fv := range patch {
					spec, declared := tpl.Field(name)
					if !declared {
						return types.Validationf("field %s is not declared by template %s", name, tpl.Name)
					}
					if fv == nil {
						if old, had := next.Fields[name]; had {
							events = append(events, pendingEvent{types.EventFieldChanged,
								strPtr(name + "=" + fmt.Sprint(old)), strPtr(name + "="), nil})
							delete(next.Fields, name)
						}
						continue
					}
					if err := spec.ValidateFieldValue(fv); err != nil {
						return err
					}
					old, had := next.Fields[name]
					if had && fmt.Sprint(old) == fmt.Sprint(fv) {
						continue
					}
					oldStr := name + "="
					if had {
						oldStr = name + "=" + fmt.Sprint(old)
					}
					events = append(events, pendingEvent{types.EventFieldChanged,
						strPtr(oldStr), strPtr(name + "=" + fmt.Sprint(fv)), nil})
					if next.Fields == nil {
						next.Fields = make(map[string]any)
					}
					next.Fields[name] = fv
				}
				if err := s.checkUniqueFields(ctx, conn, tpl, id, next.Fields); err != nil {
					return err
				}
			case "assignee":
				a, ok := value.(string)
				if !ok {
					return types.Validationf("assignee must be a string (got %T)", value)
				}
				if a != "" {
					if a, err = validation.Actor(a); err != nil {
						return err
					}
				}
				if a == cur.Assignee {
					continue
				}
				events = append(events, pendingEvent{types.EventAssigneeChanged,
					strPtr(cur.Assignee), strPtr(a), nil})
				next.Assignee = a
			case "status":
				st, ok := value.(string)
				if !ok {
					return types.Validationf("status must be a string (got %T)", value)
				}
				if st == cur.Status {
					continue
				}
				has := func(name string) bool {
					v, ok := next.Fields[name]
					return ok && v != nil
				}
				nonStandard, err := tpl.CheckTransition(id, cur.Status, st, has)
				if err != nil {
					return err
				}
				cat, err := tpl.CategoryOf(st)
				if err != nil {
					return err
				}
				var comment *string
				if nonStandard {
					comment = strPtr("non-standard transition")
				}
				events = append(events, pendingEvent{types.EventStatusChanged,
					strPtr(cur.Status), strPtr(st), comment})
				next.Status = st
				next.StatusCategory = cat
				if cat == types.CategoryDone {
					next.ClosedAt = &now
				} else {
					next.ClosedAt = nil
					next.CloseReason = ""
				}
			}
		}

		if len(events) == 0 {
			return nil
		}
		next.UpdatedAt = now
		if err := writeIssueRow(ctx, conn, &next); err != nil {
			return err
		}
		if textChanged {
			if err := updateFTS(ctx, conn, &next); err != nil {
				return err
			}
		}
		for _, ev := range events {
			if err := recordEvent(ctx, conn, id, ev.etype, actor, ev.old, ev.new, ev.comment, now); err != nil {
				return err
			}
		}
		s.countMutation(ctx, "update")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetIssue(ctx, id)
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func writeIssueRow(ctx context.Context, ex execer, issue *types.Issue) error {
	fieldsJS, err := marshalFields(issue.Fields)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		UPDATE issues SET title = ?, description = ?, notes = ?, status = ?,
			status_category = ?, priority = ?, assignee = ?, fields = ?,
			close_reason = ?, updated_at = ?, closed_at = ?
		WHERE id = ?`,
		issue.Title, issue.Description, issue.Notes, issue.Status,
		issue.StatusCategory, issue.Priority, issue.Assignee, fieldsJS,
		issue.CloseReason, issue.UpdatedAt, issue.ClosedAt, issue.ID)
	if err != nil {
		return wrapDBError("failed to update issue", err)
	}
	return nil
}

func updateFTS(ctx context.Context, ex execer, issue *types.Issue) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM issues_fts WHERE id = ?`, issue.ID); err != nil {
		return wrapDBError("failed to reindex issue", err)
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO issues_fts (id, title, description, notes) VALUES (?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Description, issue.Notes); err != nil {
		return wrapDBError("failed to reindex issue", err)
	}
	return nil
}

// CloseIssue moves an issue to its template's done state, validating the
// transition like any other status change. The reason lands on the row
// and in the audit event.
func (s *Store) CloseIssue(ctx context.Context, id, reason, actor string) (*types.Issue, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		cur, err := loadIssueBare(ctx, conn, id)
		if err != nil {
			return err
		}
		if cur.StatusCategory == types.CategoryDone {
			return types.Validationf("issue %s is already closed", id)
		}
		tpl, err := s.registry.Get(cur.IssueType)
		if err != nil {
			return err
		}
		done, ok := tpl.DoneState()
		if !ok {
			return types.Validationf("template %s declares no done state", tpl.Name)
		}
		has := func(name string) bool {
			v, ok := cur.Fields[name]
			return ok && v != nil
		}
		nonStandard, err := tpl.CheckTransition(id, cur.Status, done, has)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		next := *cur
		next.Status = done
		next.StatusCategory = types.CategoryDone
		next.ClosedAt = &now
		next.CloseReason = reason
		next.UpdatedAt = now
		if err := writeIssueRow(ctx, conn, &next); err != nil {
			return err
		}

		var comment *string
		if reason != "" {
			comment = strPtr(reason)
		} else if nonStandard {
			comment = strPtr("non-standard transition")
		}
		if err := recordEvent(ctx, conn, id, types.EventClosed, actor,
			strPtr(cur.Status), strPtr(done), comment, now); err != nil {
			return err
		}
		s.countMutation(ctx, "close")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetIssue(ctx, id)
}

// ReopenIssue returns a done issue to its template's initial state. Reopen
// is the deliberate escape hatch from a terminal state, so it bypasses the
// transition table; the audit event still records the jump.
func (s *Store) ReopenIssue(ctx context.Context, id, actor string) (*types.Issue, error) {
	actor, err := validation.Actor(actor)
	if err != nil {
		return nil, err
	}
	err = s.withImmediate(ctx, func(conn *sql.Conn) error {
		cur, err := loadIssueBare(ctx, conn, id)
		if err != nil {
			return err
		}
		if cur.StatusCategory != types.CategoryDone {
			return types.Validationf("issue %s is not closed", id)
		}
		tpl, err := s.registry.Get(cur.IssueType)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		next := *cur
		next.Status = tpl.Initial
		next.StatusCategory = types.CategoryOpen
		next.ClosedAt = nil
		next.CloseReason = ""
		next.UpdatedAt = now
		if err := writeIssueRow(ctx, conn, &next); err != nil {
			return err
		}
		if err := recordEvent(ctx, conn, id, types.EventReopened, actor,
			strPtr(cur.Status), strPtr(tpl.Initial), nil, now); err != nil {
			return err
		}
		s.countMutation(ctx, "reopen")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetIssue(ctx, id)
}

// ValidTransitions lists the transitions currently available from an
// issue's state, with Ready reflecting its populated fields.
func (s *Store) ValidTransitions(ctx context.Context, id string) ([]types.TransitionHint, error) {
	issue, err := loadIssueBare(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.registry.Get(issue.IssueType)
	if err != nil {
		return nil, err
	}
	has := func(name string) bool {
		v, ok := issue.Fields[name]
		return ok && v != nil
	}
	return tpl.ValidTransitions(issue.Status, has), nil
}

func (s *Store) countMutation(ctx context.Context, op string) {
	if s.mutations != nil {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}
