// Package sqlite provides the SQLite-backed primary log store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	project TEXT NOT NULL,
	level TEXT NOT NULL,
	module TEXT NOT NULL,
	message TEXT NOT NULL,
	details TEXT,
	context TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs (timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_project ON logs (project);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs (level);
CREATE INDEX IF NOT EXISTS idx_logs_module ON logs (module);
`

const entryColumns = "id, timestamp, project, level, module, message, details, context"

// Store is a SQLite-backed log store.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	// now is the clock used to compute retention cutoffs.
	now func() time.Time
}

// NewStore opens (creating if necessary) the database at path and ensures
// the schema exists. The connection pool is capped at one connection so the
// driver serializes concurrent writers.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Log store initialized", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertOne writes a single entry. Returns storage.ErrDuplicateID if the id
// is already present.
func (s *Store) InsertOne(ctx context.Context, entry *model.LogEntry) (string, error) {
	row, err := encodeEntry(entry)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO logs ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		row...)
	if err != nil {
		if isConstraintErr(err) {
			return "", fmt.Errorf("insert %s: %w", entry.ID, storage.ErrDuplicateID)
		}
		return "", fmt.Errorf("failed to insert log %s: %w", entry.ID, err)
	}

	s.logger.Debug("Log inserted", zap.String("id", entry.ID), zap.String("module", entry.Module))
	return entry.ID, nil
}

// InsertBatch writes all entries in one transaction. If any entry fails
// validation or write, the transaction rolls back and the returned
// BatchError carries the offending position; no partial state is visible.
func (s *Store) InsertBatch(ctx context.Context, entries []model.LogEntry) ([]string, error) {
	// Validate everything up front so malformed payloads never reach the
	// transaction.
	rows := make([][]interface{}, len(entries))
	for i := range entries {
		row, err := encodeEntry(&entries[i])
		if err != nil {
			return nil, &storage.BatchError{Index: i, ID: entries[i].ID, Err: err}
		}
		rows[i] = row
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO logs ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(entries))
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			if isConstraintErr(err) {
				err = storage.ErrDuplicateID
			}
			return nil, &storage.BatchError{Index: i, ID: entries[i].ID, Err: err}
		}
		ids = append(ids, entries[i].ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.Info("Batch inserted", zap.Int("count", len(ids)))
	return ids, nil
}

// Cleanup deletes entries older than the retention cutoff in a single
// bounded DELETE and returns the exact count removed. Re-invoking with the
// same arguments deletes nothing until more entries age past the cutoff.
func (s *Store) Cleanup(ctx context.Context, params storage.CleanupParams) (int64, error) {
	f, err := params.Filter(s.now())
	if err != nil {
		return 0, err
	}
	where, args := f.Where()

	res, err := s.db.ExecContext(ctx, "DELETE FROM logs"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up logs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted logs: %w", err)
	}

	s.logger.Info("Cleanup completed",
		zap.Int64("deleted", deleted),
		zap.Int("days_to_keep", params.DaysToKeep))
	return deleted, nil
}

// EntriesOlderThan returns every entry older than cutoff, oldest first.
// Used by the archiver to stage entries before they leave the primary table.
func (s *Store) EntriesOlderThan(ctx context.Context, cutoff time.Time) ([]model.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM logs WHERE timestamp < ? ORDER BY timestamp ASC, id ASC",
		storage.EncodeTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to read entries for archival: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// DeleteOlderThan removes every entry older than cutoff in a single bounded
// DELETE and returns the count removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM logs WHERE timestamp < ?", storage.EncodeTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived entries: %w", err)
	}
	return res.RowsAffected()
}

// Size reports the on-disk footprint of the database file in human-readable
// form. Returns storage.SizeUnknown when the size cannot be determined.
func (s *Store) Size(ctx context.Context) string {
	info, err := os.Stat(s.path)
	if err != nil {
		s.logger.Error("Failed to stat database file", zap.Error(err))
		return storage.SizeUnknown
	}
	return humanBytes(info.Size())
}

func humanBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// encodeEntry validates an entry and renders its column values. Payloads
// are serialized here so a malformed payload fails at write time.
func encodeEntry(e *model.LogEntry) ([]interface{}, error) {
	if err := e.Validate(); err != nil {
		return nil, &storage.ValidationError{Reason: err}
	}

	var details, contextJSON interface{}
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, &storage.ValidationError{Reason: fmt.Errorf("details not serializable: %w", err)}
		}
		details = string(b)
	}
	if e.Context != nil {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return nil, &storage.ValidationError{Reason: fmt.Errorf("context not serializable: %w", err)}
		}
		contextJSON = string(b)
	}

	return []interface{}{
		e.ID,
		storage.EncodeTime(e.Timestamp),
		string(e.Project),
		string(e.Level),
		e.Module,
		e.Message,
		details,
		contextJSON,
	}, nil
}

// isConstraintErr reports whether err is a SQLite constraint violation. The
// only constraint on the logs table is the id primary key, so a violation
// means a duplicate id.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
