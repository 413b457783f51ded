package logger

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is one event captured by TestLogger
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// TestLogger is a debug-level Logger whose events are decoded and kept in
// memory. Child loggers created with WithField and friends record into the
// same list.
type TestLogger struct {
	Logger
	rec *recorder
}

// NewTestLogger creates a capturing logger for tests
func NewTestLogger() *TestLogger {
	rec := &recorder{}
	return &TestLogger{
		Logger: NewWithWriter(rec, zerolog.DebugLevel),
		rec:    rec,
	}
}

// recorder is an io.Writer receiving one JSON event per Write
type recorder struct {
	mu       sync.Mutex
	messages []LogMessage
}

func (r *recorder) Write(p []byte) (int, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(p, &event); err != nil {
		return 0, err
	}

	msg := LogMessage{Fields: make(map[string]interface{})}
	for k, v := range event {
		switch k {
		case zerolog.LevelFieldName:
			msg.Level = strings.ToUpper(v.(string))
		case zerolog.MessageFieldName:
			msg.Message, _ = v.(string)
		case zerolog.ErrorFieldName:
			msg.Error = errors.New(v.(string))
		case zerolog.TimestampFieldName, "app":
		default:
			msg.Fields[k] = v
		}
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return len(p), nil
}

// GetMessages returns a copy of everything logged so far
func (l *TestLogger) GetMessages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return append([]LogMessage(nil), l.rec.messages...)
}

// GetMessagesByLevel filters captured messages by upper-case level name
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if m.Message == text {
			return true
		}
	}
	return false
}

func (l *TestLogger) Clear() {
	l.rec.mu.Lock()
	l.rec.messages = nil
	l.rec.mu.Unlock()
}
