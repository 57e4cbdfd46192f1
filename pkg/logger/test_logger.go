package logger

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a logger implementation for testing that captures all log messages
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{messages: make([]LogMessage, 0)}
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

// WithField returns a scoped logger that records into l
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return &scopedTestLogger{root: l, fields: map[string]interface{}{key: value}}
}

// WithFields returns a scoped logger that records into l
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return (&scopedTestLogger{root: l}).WithFields(fields)
}

// WithError returns a scoped logger carrying the error string
func (l *TestLogger) WithError(err error) Logger {
	return (&scopedTestLogger{root: l}).WithError(err)
}

// GetZerolog returns nil; TestLogger has no zerolog backing
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return nil
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: copied})
}

// GetMessages returns a copy of all captured messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// GetMessagesByLevel returns messages at the given level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether a message containing substr was logged at level
func (l *TestLogger) HasMessage(level, substr string) bool {
	for _, m := range l.GetMessagesByLevel(level) {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

type scopedTestLogger struct {
	root   *TestLogger
	fields map[string]interface{}
}

func (s *scopedTestLogger) merged(extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(s.fields)+len(extra))
	for k, v := range s.fields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *scopedTestLogger) Debug(msg string) { s.root.log("DEBUG", msg, s.fields) }
func (s *scopedTestLogger) Info(msg string)  { s.root.log("INFO", msg, s.fields) }
func (s *scopedTestLogger) Warn(msg string)  { s.root.log("WARN", msg, s.fields) }
func (s *scopedTestLogger) Error(msg string) { s.root.log("ERROR", msg, s.fields) }

func (s *scopedTestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	s.root.log("DEBUG", msg, s.merged(fields))
}

func (s *scopedTestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	s.root.log("INFO", msg, s.merged(fields))
}

func (s *scopedTestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	s.root.log("WARN", msg, s.merged(fields))
}

func (s *scopedTestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	s.root.log("ERROR", msg, s.merged(fields))
}

func (s *scopedTestLogger) WithField(key string, value interface{}) Logger {
	return s.WithFields(map[string]interface{}{key: value})
}

func (s *scopedTestLogger) WithFields(fields map[string]interface{}) Logger {
	return &scopedTestLogger{root: s.root, fields: s.merged(fields)}
}

func (s *scopedTestLogger) WithError(err error) Logger {
	if err == nil {
		return s
	}
	return s.WithField("error", err.Error())
}

func (s *scopedTestLogger) GetZerolog() *zerolog.Logger { return nil }
