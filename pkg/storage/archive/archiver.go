// Package archive implements the warm storage tier of the retention
// lifecycle: entries past the compression threshold move out of the primary
// table into zstd-compressed JSONL segment files, stay queryable there, and
// are permanently deleted once they pass the archive retention threshold.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/model"
)

// Segment filename format: logs_{minTs}_{maxTs}_{count}.jsonl.zst with
// timestamps in unix nanoseconds. Purge decisions and time-range pruning
// read the range straight from the name without opening the file.
const segmentSuffix = ".jsonl.zst"

// PrimarySource is the store the archiver drains. The archiver writes the
// segment before deleting, so a failure between the two duplicates entries
// into the archive but never loses them.
type PrimarySource interface {
	EntriesOlderThan(ctx context.Context, cutoff time.Time) ([]model.LogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver manages the segment directory.
type Archiver struct {
	dir    string
	source PrimarySource
	logger *zap.Logger
}

// NewArchiver creates the segment directory if needed.
func NewArchiver(dir string, source PrimarySource, logger *zap.Logger) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archiver{dir: dir, source: source, logger: logger}, nil
}

// CompressOlderThan moves every primary entry older than cutoff into a new
// segment and returns the count moved. Idempotent: once the primary table
// holds nothing older than cutoff, subsequent calls return 0.
func (a *Archiver) CompressOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := a.source.EntriesOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := a.writeSegment(entries); err != nil {
		return 0, err
	}

	deleted, err := a.source.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("segment written but primary delete failed: %w", err)
	}
	if deleted != int64(len(entries)) {
		a.logger.Warn("Archived and deleted counts differ",
			zap.Int("archived", len(entries)),
			zap.Int64("deleted", deleted))
	}

	a.logger.Info("Entries compressed into archive",
		zap.Int("count", len(entries)),
		zap.Time("cutoff", cutoff))
	return int64(len(entries)), nil
}

// PurgeOlderThan permanently deletes every segment whose newest entry is
// older than cutoff and returns the count of entries removed.
func (a *Archiver) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	segments, err := a.segments()
	if err != nil {
		return 0, err
	}

	var purged int64
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if !seg.maxTs.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, seg.name)); err != nil {
			return purged, fmt.Errorf("failed to delete segment %s: %w", seg.name, err)
		}
		purged += seg.count
		a.logger.Info("Expired segment deleted", zap.String("segment", seg.name))
	}
	return purged, nil
}

func (a *Archiver) writeSegment(entries []model.LogEntry) error {
	// EntriesOlderThan returns oldest first, so the range is first..last.
	minTs := entries[0].Timestamp
	maxTs := entries[len(entries)-1].Timestamp
	name := fmt.Sprintf("logs_%d_%d_%d%s", minTs.UnixNano(), maxTs.UnixNano(), len(entries), segmentSuffix)

	tmp := filepath.Join(a.dir, name+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	defer os.Remove(tmp)

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	je := json.NewEncoder(enc)
	for i := range entries {
		if err := je.Encode(&entries[i]); err != nil {
			enc.Close()
			f.Close()
			return fmt.Errorf("failed to encode entry %s: %w", entries[i].ID, err)
		}
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finish segment: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync segment: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close segment: %w", err)
	}

	// Rename after sync so a partially written segment is never visible
	// under a final name.
	if err := os.Rename(tmp, filepath.Join(a.dir, name)); err != nil {
		return fmt.Errorf("failed to publish segment: %w", err)
	}
	return nil
}

type segmentInfo struct {
	name  string
	minTs time.Time
	maxTs time.Time
	count int64
}

func (a *Archiver) segments() ([]segmentInfo, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var segs []segmentInfo
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), segmentSuffix) {
			continue
		}
		seg, err := parseSegmentName(de.Name())
		if err != nil {
			// Foreign file in the archive dir, leave it alone.
			continue
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegmentName(name string) (segmentInfo, error) {
	base := strings.TrimSuffix(name, segmentSuffix)
	parts := strings.Split(base, "_")
	if len(parts) != 4 || parts[0] != "logs" {
		return segmentInfo{}, fmt.Errorf("unexpected segment name %q", name)
	}

	minNs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return segmentInfo{}, err
	}
	maxNs, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return segmentInfo{}, err
	}
	count, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return segmentInfo{}, err
	}

	return segmentInfo{
		name:  name,
		minTs: time.Unix(0, minNs),
		maxTs: time.Unix(0, maxNs),
		count: count,
	}, nil
}
