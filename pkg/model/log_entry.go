package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogLevel defines the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// Levels lists all known levels in ascending severity order.
func Levels() []LogLevel {
	return []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical}
}

// Severity returns the rank of the level (debug=0 .. critical=4).
// Filters only use equality today; the ordering is kept for future
// threshold-style filtering.
func (l LogLevel) Severity() int {
	switch l {
	case LogLevelDebug:
		return 0
	case LogLevelInfo:
		return 1
	case LogLevelWarning:
		return 2
	case LogLevelError:
		return 3
	case LogLevelCritical:
		return 4
	}
	return -1
}

func (l LogLevel) Valid() bool { return l.Severity() >= 0 }

// ParseLevel validates a caller-supplied level string.
func ParseLevel(s string) (LogLevel, error) {
	l := LogLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// LogProject identifies the originating system of a log entry.
type LogProject string

const (
	LogProjectServer  LogProject = "server"
	LogProjectAgents  LogProject = "agents"
	LogProjectPlugins LogProject = "plugins"
	LogProjectSDK     LogProject = "sdk"
	LogProjectOther   LogProject = "other"
)

// Projects lists all known projects.
func Projects() []LogProject {
	return []LogProject{LogProjectServer, LogProjectAgents, LogProjectPlugins, LogProjectSDK, LogProjectOther}
}

func (p LogProject) Valid() bool {
	switch p {
	case LogProjectServer, LogProjectAgents, LogProjectPlugins, LogProjectSDK, LogProjectOther:
		return true
	}
	return false
}

// ParseProject validates a caller-supplied project string.
func ParseProject(s string) (LogProject, error) {
	p := LogProject(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown project %q", s)
	}
	return p, nil
}

// LogEntry is one persisted log record. The ingestion boundary assigns ID
// and Timestamp before the entry reaches the store; entries are immutable
// once written.
type LogEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Project   LogProject             `json:"project"`
	Level     LogLevel               `json:"level"`
	Module    string                 `json:"module"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Validate checks the invariants the store relies on: required fields
// present, enums in their closed domains, payloads serializable. A bad
// payload must fail here, at write time, not corrupt silently on read.
func (e *LogEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if !e.Project.Valid() {
		return fmt.Errorf("unknown project %q", e.Project)
	}
	if !e.Level.Valid() {
		return fmt.Errorf("unknown log level %q", e.Level)
	}
	if e.Module == "" {
		return fmt.Errorf("module is required")
	}
	if e.Message == "" {
		return fmt.Errorf("message is required")
	}
	if e.Details != nil {
		if _, err := json.Marshal(e.Details); err != nil {
			return fmt.Errorf("details not serializable: %w", err)
		}
	}
	if e.Context != nil {
		if _, err := json.Marshal(e.Context); err != nil {
			return fmt.Errorf("context not serializable: %w", err)
		}
	}
	return nil
}

// LogStats is a derived aggregate view, recomputed per request and never
// persisted. LogsByLevel and LogsByProject cover every known enum value,
// zero-filled; LogsByModule holds only the top modules by count.
type LogStats struct {
	TotalLogs     int64                `json:"total_logs"`
	LogsByLevel   map[LogLevel]int64   `json:"logs_by_level"`
	LogsByProject map[LogProject]int64 `json:"logs_by_project"`
	LogsByModule  map[string]int64     `json:"logs_by_module"`
	TimePeriod    TimePeriod           `json:"time_period"`
}

// TimePeriod is the effective start/end of a stats computation: the
// caller-supplied bounds when given, otherwise the observed span.
type TimePeriod struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}
