package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/skeinhq/skein/internal/types"
)

// GetStatistics returns aggregate counts over the working set plus the
// archive, and the average lead time (create to close) of done issues.
func (s *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}

	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status_category = 'open'),
		       count(*) FILTER (WHERE status_category = 'wip'),
		       count(*) FILTER (WHERE status_category = 'done')
		FROM issues`).Scan(
		&stats.TotalIssues, &stats.OpenIssues, &stats.WIPIssues, &stats.DoneIssues)
	if err != nil {
		return nil, wrapDBError("failed to compute issue counts", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM archived_issues`).Scan(&stats.ArchivedIssues); err != nil {
		return nil, wrapDBError("failed to count archived issues", err)
	}

	if stats.ReadyIssues, err = s.ReadyCount(ctx); err != nil {
		return nil, err
	}
	if stats.BlockedIssues, err = s.BlockedCount(ctx); err != nil {
		return nil, err
	}

	// Lead time spans both live and archived done issues; julianday gives
	// fractional days, converted to hours.
	var lead sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT avg(hours) FROM (
			SELECT (julianday(closed_at) - julianday(created_at)) * 24.0 AS hours
			FROM issues WHERE closed_at IS NOT NULL
			UNION ALL
			SELECT (julianday(closed_at) - julianday(created_at)) * 24.0
			FROM archived_issues
		)`).Scan(&lead)
	if err != nil {
		return nil, wrapDBError("failed to compute lead time", err)
	}
	if lead.Valid {
		stats.AverageLeadTime = lead.Float64
	}
	return stats, nil
}

// GetFlowMetrics summarizes throughput over a trailing window of days.
func (s *Store) GetFlowMetrics(ctx context.Context, windowDays int) (*types.FlowMetrics, error) {
	if windowDays < 1 {
		return nil, types.Validationf("windowDays must be at least 1 (got %d)", windowDays)
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	metrics := &types.FlowMetrics{WindowDays: windowDays}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM issues WHERE created_at >= ?`, since).Scan(&metrics.Created)
	if err != nil {
		return nil, wrapDBError("failed to count created issues", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM issues WHERE closed_at >= ?) +
		       (SELECT count(*) FROM archived_issues WHERE closed_at >= ?)`,
		since, since).Scan(&metrics.Closed)
	if err != nil {
		return nil, wrapDBError("failed to count closed issues", err)
	}
	metrics.ThroughputPerDay = float64(metrics.Closed) / float64(windowDays)

	var oldest sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT (julianday('now') - julianday(min(created_at))) * 24.0
		FROM issues WHERE status_category != 'done'`).Scan(&oldest)
	if err != nil {
		return nil, wrapDBError("failed to compute oldest open age", err)
	}
	if oldest.Valid {
		metrics.OldestOpenHours = oldest.Float64
	}
	return metrics, nil
}
