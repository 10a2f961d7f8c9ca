package sqlite

import (
	"context"
	"fmt"

	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
)

// topModules caps the logs_by_module dimension. Modules are open-ended, so
// unlike levels and projects they are not zero-filled.
const topModules = 10

// Stats aggregates counts over the entries matching the filter: a total,
// per-level and per-project breakdowns (every known value present,
// zero-filled), and the top modules by count.
//
// When the caller omits a time bound, the effective period falls back to
// the min/max timestamp of the entire unfiltered table, not the filtered
// subset, even when a project filter is active. Consumers depend on that
// fallback shape, so it is deliberate.
//
// Each dimension is an independent read against a possibly-changing table;
// the result is eventually consistent across its own sub-queries.
func (s *Store) Stats(ctx context.Context, params storage.StatsParams) (model.LogStats, error) {
	stats := model.LogStats{
		LogsByLevel:   make(map[model.LogLevel]int64, len(model.Levels())),
		LogsByProject: make(map[model.LogProject]int64, len(model.Projects())),
		LogsByModule:  make(map[string]int64, topModules),
	}
	for _, l := range model.Levels() {
		stats.LogsByLevel[l] = 0
	}
	for _, p := range model.Projects() {
		stats.LogsByProject[p] = 0
	}

	f, err := params.Filter()
	if err != nil {
		return stats, err
	}
	where, args := f.Where()

	// Total.
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+where, args...)
	if err := row.Scan(&stats.TotalLogs); err != nil {
		return stats, fmt.Errorf("failed to count logs: %w", err)
	}

	// Per level.
	if err := s.countBy(ctx, "level", where, args, func(key string, n int64) {
		stats.LogsByLevel[model.LogLevel(key)] = n
	}); err != nil {
		return stats, err
	}

	// Per project.
	if err := s.countBy(ctx, "project", where, args, func(key string, n int64) {
		stats.LogsByProject[model.LogProject(key)] = n
	}); err != nil {
		return stats, err
	}

	// Top modules, ties broken by module name for a deterministic cut.
	query := fmt.Sprintf(
		"SELECT module, COUNT(*) AS count FROM logs%s GROUP BY module ORDER BY count DESC, module ASC LIMIT %d",
		where, topModules)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("failed to count logs by module: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var module string
		var n int64
		if err := rows.Scan(&module, &n); err != nil {
			return stats, fmt.Errorf("failed to scan module count: %w", err)
		}
		stats.LogsByModule[module] = n
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read module counts: %w", err)
	}

	if err := s.fillTimePeriod(ctx, params, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column, where string, args []interface{}, set func(string, int64)) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM logs%s GROUP BY %s", column, where, column)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to count logs by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		set(key, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read %s counts: %w", column, err)
	}
	return nil
}

func (s *Store) fillTimePeriod(ctx context.Context, params storage.StatsParams, stats *model.LogStats) error {
	if !params.Start.IsZero() {
		t := params.Start
		stats.TimePeriod.Start = &t
	}
	if !params.End.IsZero() {
		t := params.End
		stats.TimePeriod.End = &t
	}
	if stats.TimePeriod.Start != nil && stats.TimePeriod.End != nil {
		return nil
	}

	var minTs, maxTs *string
	row := s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM logs")
	if err := row.Scan(&minTs, &maxTs); err != nil {
		return fmt.Errorf("failed to read observed time span: %w", err)
	}

	if stats.TimePeriod.Start == nil && minTs != nil {
		t, err := storage.DecodeTime(*minTs)
		if err != nil {
			return fmt.Errorf("corrupt min timestamp: %w", err)
		}
		stats.TimePeriod.Start = &t
	}
	if stats.TimePeriod.End == nil && maxTs != nil {
		t, err := storage.DecodeTime(*maxTs)
		if err != nil {
			return fmt.Errorf("corrupt max timestamp: %w", err)
		}
		stats.TimePeriod.End = &t
	}
	return nil
}
