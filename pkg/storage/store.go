package storage

import (
	"context"

	"github.com/logcove/logcove/pkg/model"
)

// SizeUnknown is returned by Size when the on-disk footprint cannot be
// determined. Size is advisory telemetry, so an unreachable store reports
// this sentinel instead of an error.
const SizeUnknown = "N/A"

// LogStore is the interface for persisting and retrieving log entries from
// a storage backend.
type LogStore interface {
	// InsertOne writes a single entry. Fails with ErrDuplicateID if the id
	// already exists and with a ValidationError if the entry is malformed.
	InsertOne(ctx context.Context, entry *model.LogEntry) (string, error)

	// InsertBatch writes all entries in one all-or-nothing transaction.
	// On failure a BatchError identifies the offending entry and nothing
	// is persisted.
	InsertBatch(ctx context.Context, entries []model.LogEntry) ([]string, error)

	// Query returns one bounded page of entries matching the filter,
	// ordered by timestamp descending with id as tiebreak.
	Query(ctx context.Context, params QueryParams) ([]model.LogEntry, error)

	// Stats aggregates counts over the matching set. The sub-queries are
	// independent reads, so the result is eventually consistent across its
	// own dimensions, not a transactional snapshot.
	Stats(ctx context.Context, params StatsParams) (model.LogStats, error)

	// Cleanup deletes entries older than the retention cutoff in a single
	// bounded statement and returns the exact count removed.
	Cleanup(ctx context.Context, params CleanupParams) (int64, error)

	// Size reports the human-readable on-disk footprint, or SizeUnknown.
	Size(ctx context.Context) string
}
