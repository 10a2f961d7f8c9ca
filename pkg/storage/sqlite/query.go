package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
)

const (
	// DefaultLimit is applied when the caller passes limit <= 0, so a page
	// is never unbounded.
	DefaultLimit = 100
	// MaxLimit caps a single page as a backstop against unbounded result
	// materialization.
	MaxLimit = 1000
)

// Query returns one page of entries matching the filter, newest first.
// Ties on timestamp are broken by id descending so page boundaries are
// stable across repeated calls against an unchanged table. A start bound
// after the end bound yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, params storage.QueryParams) ([]model.LogEntry, error) {
	f, err := params.Filter()
	if err != nil {
		return nil, err
	}
	where, args := f.Where()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + entryColumns + " FROM logs" + where +
		" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log rows: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (model.LogEntry, error) {
	var entry model.LogEntry
	var ts, project, level string
	var details, contextJSON sql.NullString

	if err := rows.Scan(
		&entry.ID,
		&ts,
		&project,
		&level,
		&entry.Module,
		&entry.Message,
		&details,
		&contextJSON,
	); err != nil {
		return entry, fmt.Errorf("failed to scan log row: %w", err)
	}

	t, err := storage.DecodeTime(ts)
	if err != nil {
		return entry, fmt.Errorf("corrupt timestamp on log %s: %w", entry.ID, err)
	}
	entry.Timestamp = t
	entry.Project = model.LogProject(project)
	entry.Level = model.LogLevel(level)

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
			return entry, fmt.Errorf("corrupt details on log %s: %w", entry.ID, err)
		}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &entry.Context); err != nil {
			return entry, fmt.Errorf("corrupt context on log %s: %w", entry.ID, err)
		}
	}
	return entry, nil
}
