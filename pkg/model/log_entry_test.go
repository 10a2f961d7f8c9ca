package model

import (
	"testing"
	"time"
)

func validEntry() LogEntry {
	return LogEntry{
		ID:        "entry-1",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Project:   LogProjectServer,
		Level:     LogLevelError,
		Module:    "workflow_triggers",
		Message:   "failed to load triggers",
	}
}

func TestLogEntry_Validate(t *testing.T) {
	entry := validEntry()
	if err := entry.Validate(); err != nil {
		t.Fatalf("Expected valid entry, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*LogEntry)
	}{
		{"missing id", func(e *LogEntry) { e.ID = "" }},
		{"missing timestamp", func(e *LogEntry) { e.Timestamp = time.Time{} }},
		{"unknown project", func(e *LogEntry) { e.Project = "not-a-project" }},
		{"unknown level", func(e *LogEntry) { e.Level = "loud" }},
		{"missing module", func(e *LogEntry) { e.Module = "" }},
		{"missing message", func(e *LogEntry) { e.Message = "" }},
		{"non-serializable details", func(e *LogEntry) {
			e.Details = map[string]interface{}{"ch": make(chan int)}
		}},
		{"non-serializable context", func(e *LogEntry) {
			e.Context = map[string]interface{}{"fn": func() {}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEntry()
			tc.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Errorf("Expected validation error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLogLevel_Severity(t *testing.T) {
	levels := Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i-1].Severity() >= levels[i].Severity() {
			t.Errorf("Expected %s < %s in severity", levels[i-1], levels[i])
		}
	}
	if LogLevel("verbose").Severity() != -1 {
		t.Error("Expected unknown level to have severity -1")
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("warning"); err != nil {
		t.Errorf("Expected warning to parse, got %v", err)
	}
	if _, err := ParseLevel("WARNING"); err == nil {
		t.Error("Expected case-sensitive parse to reject WARNING")
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("Expected unknown level to be rejected")
	}
}

func TestParseProject(t *testing.T) {
	for _, p := range Projects() {
		if _, err := ParseProject(string(p)); err != nil {
			t.Errorf("Expected %s to parse, got %v", p, err)
		}
	}
	if _, err := ParseProject("billing"); err == nil {
		t.Error("Expected unknown project to be rejected")
	}
}
