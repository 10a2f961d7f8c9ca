package storage

import (
	"strings"
	"time"

	"github.com/logcove/logcove/pkg/model"
)

// TimeLayout is the on-disk timestamp encoding. It is fixed-width UTC so
// that lexicographic comparison of stored values matches chronological
// order, which the range predicates and the DESC sort rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// EncodeTime formats a timestamp for storage.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DecodeTime parses a stored timestamp.
func DecodeTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Filter is an ordered list of typed predicate clauses, AND-combined into
// one WHERE fragment. Query, stats and cleanup all compose their predicates
// through it so there is a single composition path instead of ad hoc SQL
// concatenation per call site.
type Filter struct {
	exprs []string
	args  []interface{}
}

func (f *Filter) add(expr string, arg interface{}) {
	f.exprs = append(f.exprs, expr)
	f.args = append(f.args, arg)
}

// Project adds an equality predicate on project. The value must be in the
// closed project domain.
func (f *Filter) Project(p model.LogProject) error {
	if !p.Valid() {
		return &InvalidFilterError{Field: "project", Value: string(p)}
	}
	f.add("project = ?", string(p))
	return nil
}

// Level adds an equality predicate on level. The value must be in the
// closed level domain.
func (f *Filter) Level(l model.LogLevel) error {
	if !l.Valid() {
		return &InvalidFilterError{Field: "level", Value: string(l)}
	}
	f.add("level = ?", string(l))
	return nil
}

// Module adds an equality predicate on module.
func (f *Filter) Module(m string) {
	f.add("module = ?", m)
}

// Since adds an inclusive lower timestamp bound.
func (f *Filter) Since(t time.Time) {
	f.add("timestamp >= ?", EncodeTime(t))
}

// Until adds an inclusive upper timestamp bound.
func (f *Filter) Until(t time.Time) {
	f.add("timestamp <= ?", EncodeTime(t))
}

// OlderThan adds an exclusive upper timestamp bound (retention cutoff).
func (f *Filter) OlderThan(t time.Time) {
	f.add("timestamp < ?", EncodeTime(t))
}

// Where renders the filter as a SQL fragment (with leading " WHERE ") and
// its arguments. An empty filter renders as the empty string.
func (f *Filter) Where() (string, []interface{}) {
	if len(f.exprs) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(f.exprs, " AND "), f.args
}

// QueryParams defines criteria for one bounded page of entries. Zero
// values mean "no filter" for the optional fields.
type QueryParams struct {
	Project model.LogProject
	Level   model.LogLevel
	Module  string
	Start   time.Time
	End     time.Time
	Limit   int
	Offset  int
}

// Filter validates the params and composes their predicate clauses.
func (p QueryParams) Filter() (*Filter, error) {
	f := &Filter{}
	if p.Project != "" {
		if err := f.Project(p.Project); err != nil {
			return nil, err
		}
	}
	if p.Level != "" {
		if err := f.Level(p.Level); err != nil {
			return nil, err
		}
	}
	if p.Module != "" {
		f.Module(p.Module)
	}
	if !p.Start.IsZero() {
		f.Since(p.Start)
	}
	if !p.End.IsZero() {
		f.Until(p.End)
	}
	return f, nil
}

// StatsParams defines criteria for an aggregation. Same predicate shape as
// QueryParams minus pagination and the module/level dimensions being
// aggregated over.
type StatsParams struct {
	Project model.LogProject
	Start   time.Time
	End     time.Time
}

// Filter validates the params and composes their predicate clauses.
func (p StatsParams) Filter() (*Filter, error) {
	f := &Filter{}
	if p.Project != "" {
		if err := f.Project(p.Project); err != nil {
			return nil, err
		}
	}
	if !p.Start.IsZero() {
		f.Since(p.Start)
	}
	if !p.End.IsZero() {
		f.Until(p.End)
	}
	return f, nil
}

// CleanupParams defines a retention pass: delete entries older than
// DaysToKeep days, optionally narrowed by project and level.
type CleanupParams struct {
	DaysToKeep int
	Project    model.LogProject
	Level      model.LogLevel
}

// Filter composes the cutoff and optional narrowing predicates. The cutoff
// instant is now − DaysToKeep days.
func (p CleanupParams) Filter(now time.Time) (*Filter, error) {
	f := &Filter{}
	f.OlderThan(now.AddDate(0, 0, -p.DaysToKeep))
	if p.Project != "" {
		if err := f.Project(p.Project); err != nil {
			return nil, err
		}
	}
	if p.Level != "" {
		if err := f.Level(p.Level); err != nil {
			return nil, err
		}
	}
	return f, nil
}
