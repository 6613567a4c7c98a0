package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/validation"
)

// AddDependency inserts a directed edge (issue blocked by depends_on).
// Blocking edges are checked for cycles before the insert; the check and
// the insert share one immediate transaction so no concurrent writer can
// sneak a closing edge in between.
func (s *Store) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	if dep == nil || dep.IssueID == "" || dep.DependsOnID == "" {
		return types.Validationf("dependency requires issue_id and depends_on_id")
	}
	if dep.Type == "" {
		dep.Type = types.DepBlocks
	}
	if !dep.Type.IsValid() {
		return types.Validationf("invalid dependency type %q", dep.Type)
	}

	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		now := time.Now().UTC()
		dep.CreatedAt = now
		dep.CreatedBy = actor
		if err := addDependencyConn(ctx, conn, dep, actor, now); err != nil {
			return err
		}
		s.countMutation(ctx, "dep_add")
		return nil
	})
}

// addDependencyConn is the in-transaction body shared by AddDependency and
// inline edges on CreateIssue.
func addDependencyConn(ctx context.Context, conn *sql.Conn, dep *types.Dependency, actor string, now time.Time) error {
	if dep.IssueID == dep.DependsOnID {
		return &types.CycleDetectedError{FromID: dep.IssueID, ToID: dep.DependsOnID}
	}
	for _, id := range []string{dep.IssueID, dep.DependsOnID} {
		if _, err := loadIssueBare(ctx, conn, id); err != nil {
			return err
		}
	}

	var n int
	if err := conn.QueryRowContext(ctx,
		`SELECT count(*) FROM dependencies WHERE issue_id = ? AND depends_on_id = ?`,
		dep.IssueID, dep.DependsOnID).Scan(&n); err != nil {
		return wrapDBError("failed to check dependency", err)
	}
	if n > 0 {
		return types.Validationf("dependency %s -> %s already exists", dep.IssueID, dep.DependsOnID)
	}

	if dep.Type.AffectsReadiness() {
		// Would the new edge close a loop? Walk the blocking graph from the
		// blocker; if the blocked issue is reachable, the edge is refused and
		// the graph is untouched.
		var cyclic int
		err := conn.QueryRowContext(ctx, `
			WITH RECURSIVE reach(id) AS (
				SELECT ?
				UNION
				SELECT d.depends_on_id
				FROM dependencies d
				JOIN reach r ON d.issue_id = r.id
				WHERE d.type = 'blocks'
			)
			SELECT count(*) FROM reach WHERE id = ?`,
			dep.DependsOnID, dep.IssueID).Scan(&cyclic)
		if err != nil {
			return wrapDBError("failed to check for cycles", err)
		}
		if cyclic > 0 {
			return &types.CycleDetectedError{FromID: dep.IssueID, ToID: dep.DependsOnID}
		}
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO dependencies (issue_id, depends_on_id, type, created_at, created_by)
		VALUES (?, ?, ?, ?, ?)`,
		dep.IssueID, dep.DependsOnID, string(dep.Type), now, actor); err != nil {
		return wrapDBError("failed to insert dependency", err)
	}
	return recordEvent(ctx, conn, dep.IssueID, types.EventDependencyAdded, actor,
		nil, strPtr(dep.DependsOnID), strPtr(string(dep.Type)), now)
}

// RemoveDependency deletes an edge. Removing the last blocking edge of an
// open issue makes it ready again with no further action.
func (s *Store) RemoveDependency(ctx context.Context, issueID, dependsOnID, actor string) error {
	actor, err := validation.Actor(actor)
	if err != nil {
		return err
	}
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM dependencies WHERE issue_id = ? AND depends_on_id = ?`,
			issueID, dependsOnID)
		if err != nil {
			return wrapDBError("failed to remove dependency", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return &types.NotFoundError{Kind: "dependency", ID: issueID + " -> " + dependsOnID}
		}
		if err := recordEvent(ctx, conn, issueID, types.EventDependencyRemoved, actor,
			strPtr(dependsOnID), nil, nil, time.Now().UTC()); err != nil {
			return err
		}
		s.countMutation(ctx, "dep_remove")
		return nil
	})
}

type pathMeta struct {
	title     string
	priority  int
	issueType string
	createdAt time.Time
	blockers  []string
}

// GetCriticalPath returns the longest chain of unresolved blocking work
// under an issue, starting at the issue itself. Ties between equally deep
// branches break on priority, then age, then id, so the path is stable.
func (s *Store) GetCriticalPath(ctx context.Context, id string) ([]types.PathNode, error) {
	if _, err := loadIssueBare(ctx, s.db, id); err != nil {
		return nil, err
	}

	// Pull the reachable blocking subgraph in one query; graphs here are
	// project-sized, not internet-sized.
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE reach(id) AS (
			SELECT ?
			UNION
			SELECT d.depends_on_id
			FROM dependencies d
			JOIN reach r ON d.issue_id = r.id
			WHERE d.type = 'blocks'
		)
		SELECT i.id, i.title, i.priority, i.issue_type, i.created_at, i.status_category
		FROM issues i JOIN reach r ON i.id = r.id`, id)
	if err != nil {
		return nil, wrapDBError("failed to load dependency subgraph", err)
	}
	defer rows.Close()

	meta := make(map[string]*pathMeta)
	doneSet := make(map[string]bool)
	for rows.Next() {
		var (
			nid, title, itype, cat string
			prio                   int
			created                time.Time
		)
		if err := rows.Scan(&nid, &title, &prio, &itype, &created, &cat); err != nil {
			return nil, err
		}
		meta[nid] = &pathMeta{title: title, priority: prio, issueType: itype, createdAt: created}
		doneSet[nid] = cat == string(types.CategoryDone)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, depends_on_id FROM dependencies WHERE type = 'blocks'`)
	if err != nil {
		return nil, wrapDBError("failed to load dependency edges", err)
	}
	defer erows.Close()
	for erows.Next() {
		var from, to string
		if err := erows.Scan(&from, &to); err != nil {
			return nil, err
		}
		if m, ok := meta[from]; ok {
			if _, ok := meta[to]; ok {
				m.blockers = append(m.blockers, to)
			}
		}
	}
	if err := erows.Err(); err != nil {
		return nil, err
	}

	// depth is memoized longest-chain length counting only unresolved
	// blockers; done issues contribute nothing to the remaining path.
	depth := make(map[string]int)
	var depthOf func(string) int
	depthOf = func(nid string) int {
		if d, ok := depth[nid]; ok {
			return d
		}
		depth[nid] = 0 // cycle guard; the insert path forbids cycles anyway
		best := 0
		for _, b := range meta[nid].blockers {
			if doneSet[b] {
				continue
			}
			if d := depthOf(b) + 1; d > best {
				best = d
			}
		}
		depth[nid] = best
		return best
	}

	depthOf(id)

	pick := func(candidates []string) string {
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if depth[a] != depth[b] {
				return depth[a] > depth[b]
			}
			if meta[a].priority != meta[b].priority {
				return meta[a].priority < meta[b].priority
			}
			if !meta[a].createdAt.Equal(meta[b].createdAt) {
				return meta[a].createdAt.Before(meta[b].createdAt)
			}
			return a < b
		})
		return candidates[0]
	}

	var path []types.PathNode
	cur := id
	for {
		m := meta[cur]
		path = append(path, types.PathNode{
			ID:        cur,
			Title:     m.title,
			Priority:  m.priority,
			IssueType: m.issueType,
		})
		var open []string
		for _, b := range m.blockers {
			if !doneSet[b] {
				open = append(open, b)
			}
		}
		if len(open) == 0 {
			break
		}
		cur = pick(open)
	}
	return path, nil
}

// GetBlockedIssues lists unresolved issues that have at least one
// unresolved blocker, with the blocker ids attached.
func (s *Store) GetBlockedIssues(ctx context.Context) ([]*types.BlockedIssue, error) {
	issues, err := s.queryIssues(ctx, `
		SELECT `+issueColumns+` FROM issues i
		WHERE i.status_category != 'done'
		  AND EXISTS (
			SELECT 1 FROM dependencies d
			JOIN issues b ON b.id = d.depends_on_id
			WHERE d.issue_id = i.id
			  AND d.type = 'blocks'
			  AND b.status_category != 'done'
		  )
		ORDER BY i.priority ASC, i.created_at ASC, i.id ASC`)
	if err != nil {
		return nil, err
	}

	out := make([]*types.BlockedIssue, 0, len(issues))
	for _, issue := range issues {
		blockers, err := queryIDs(ctx, s.db, `
			SELECT d.depends_on_id FROM dependencies d
			JOIN issues b ON b.id = d.depends_on_id
			WHERE d.issue_id = ? AND d.type = 'blocks' AND b.status_category != 'done'
			ORDER BY d.depends_on_id`, issue.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &types.BlockedIssue{
			Issue:          *issue,
			BlockedByCount: len(blockers),
			BlockedByIDs:   blockers,
		})
	}
	return out, nil
}

// GetReadyIssues lists unblocked open issues in claim order.
func (s *Store) GetReadyIssues(ctx context.Context, limit int) ([]*types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues i
		WHERE ` + readyPredicate + `
		ORDER BY i.priority ASC, i.created_at ASC, i.id ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	issues, err := s.queryIssues(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		issue.IsReady = true
	}
	return issues, nil
}

// ReadyCount returns the number of ready issues.
func (s *Store) ReadyCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM issues i WHERE `+readyPredicate).Scan(&n)
	if err != nil {
		return 0, wrapDBError("failed to count ready issues", err)
	}
	return n, nil
}

// BlockedCount returns the number of unresolved issues with unresolved
// blockers.
func (s *Store) BlockedCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM issues i
		WHERE i.status_category != 'done'
		  AND EXISTS (
			SELECT 1 FROM dependencies d
			JOIN issues b ON b.id = d.depends_on_id
			WHERE d.issue_id = i.id
			  AND d.type = 'blocks'
			  AND b.status_category != 'done'
		  )`).Scan(&n)
	if err != nil {
		return 0, wrapDBError("failed to count blocked issues", err)
	}
	return n, nil
}
