package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogLevel classifies one evaluation note.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogEntry is one evaluation note with its offset from the start of the
// evaluation.
type LogEntry struct {
	ElapsedMicros int64    `json:"elapsed_micros"`
	Level         LogLevel `json:"level"`
	Message       string   `json:"message"`
}

// Logs is the request-scoped note buffer. Every evaluation carries one;
// its entries land in the audit record's logs field. Not safe for
// concurrent use, which matches its single-request lifetime.
type Logs struct {
	start   time.Time
	entries []LogEntry
}

// NewLogs starts a buffer; elapsed offsets are measured from start.
func NewLogs(start time.Time) *Logs {
	if start.IsZero() {
		start = time.Now()
	}
	return &Logs{start: start}
}

// Log appends one note.
func (l *Logs) Log(level LogLevel, msg string) {
	l.entries = append(l.entries, LogEntry{
		ElapsedMicros: time.Since(l.start).Microseconds(),
		Level:         level,
		Message:       msg,
	})
}

// Debugf appends a formatted debug note.
func (l *Logs) Debugf(format string, args ...any) {
	l.Log(LevelDebug, fmt.Sprintf(format, args...))
}

// Infof appends a formatted info note.
func (l *Logs) Infof(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...))
}

// Errorf appends a formatted error note.
func (l *Logs) Errorf(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...))
}

// Entries returns the accumulated notes.
func (l *Logs) Entries() []LogEntry {
	return l.entries
}

// MarshalJSON renders the notes as an array, never null.
func (l *Logs) MarshalJSON() ([]byte, error) {
	if len(l.entries) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}
