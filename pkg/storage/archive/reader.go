package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
)

// Query returns one page of archived entries matching the filter, newest
// first with id as tiebreak, mirroring the primary store's contract.
// Segments whose time range cannot intersect the requested bounds are
// skipped without being opened.
func (a *Archiver) Query(ctx context.Context, params storage.QueryParams) ([]model.LogEntry, error) {
	// Validation only; archived entries are matched in Go, not SQL.
	if _, err := params.Filter(); err != nil {
		return nil, err
	}

	segs, err := a.segments()
	if err != nil {
		return nil, err
	}

	var matched []model.LogEntry
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !params.Start.IsZero() && seg.maxTs.Before(params.Start) {
			continue
		}
		if !params.End.IsZero() && seg.minTs.After(params.End) {
			continue
		}
		entries, err := a.readSegment(seg.name)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if matchEntry(&entries[i], params) {
				matched = append(matched, entries[i])
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	if end := offset + limit; end < len(matched) {
		return matched[offset:end], nil
	}
	return matched[offset:], nil
}

func (a *Archiver) readSegment(name string) ([]model.LogEntry, error) {
	f, err := os.Open(filepath.Join(a.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", name, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress segment %s: %w", name, err)
	}
	defer dec.Close()

	var entries []model.LogEntry
	jd := json.NewDecoder(dec)
	for {
		var entry model.LogEntry
		if err := jd.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("corrupt segment %s: %w", name, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func matchEntry(e *model.LogEntry, params storage.QueryParams) bool {
	if params.Project != "" && e.Project != params.Project {
		return false
	}
	if params.Level != "" && e.Level != params.Level {
		return false
	}
	if params.Module != "" && e.Module != params.Module {
		return false
	}
	if !params.Start.IsZero() && e.Timestamp.Before(params.Start) {
		return false
	}
	if !params.End.IsZero() && e.Timestamp.After(params.End) {
		return false
	}
	return true
}
