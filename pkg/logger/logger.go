package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"prodfetch/pkg/config"
)

// Logger is the logging surface shared by every package
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

// eventLogger adapts a zerolog.Logger; child loggers carry their fields in
// the zerolog context
type eventLogger struct {
	zl zerolog.Logger
}

// New builds a Logger from configuration. Output goes to stderr as console
// text on a terminal and as JSON lines otherwise (CI runs), and is copied to
// cfg.File as JSON when set.
func New(cfg *config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out, err := stderrWriter(cfg.Format)
	if err != nil {
		return nil, err
	}

	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	return NewWithWriter(out, level), nil
}

func stderrWriter(format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "json":
		return os.Stderr, nil
	case "console":
		return consoleWriter(os.Stderr), nil
	case "", "auto":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			return consoleWriter(os.Stderr), nil
		}
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return strings.ToUpper(fmt.Sprintf("%-5s", i))
		},
	}
}

// NewWithWriter creates a Logger writing JSON events to w at level
func NewWithWriter(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("app", "prodfetch").
		Logger()
	return &eventLogger{zl: zl}
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// parseLogLevel accepts the config level names plus "warning"
func parseLogLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "debug", "warn", "error", "disabled":
		return zerolog.ParseLevel(name)
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *eventLogger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *eventLogger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *eventLogger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *eventLogger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *eventLogger) WithField(key string, value interface{}) Logger {
	return &eventLogger{zl: withValue(l.zl.With(), key, value).Logger()}
}

func (l *eventLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = withValue(ctx, k, v)
	}
	return &eventLogger{zl: ctx.Logger()}
}

func (l *eventLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &eventLogger{zl: l.zl.With().Str("error", err.Error()).Logger()}
}

func (l *eventLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.zl.Debug().Fields(normalize(fields)).Msg(msg)
}

func (l *eventLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.zl.Info().Fields(normalize(fields)).Msg(msg)
}

func (l *eventLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.zl.Warn().Fields(normalize(fields)).Msg(msg)
}

func (l *eventLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.zl.Error().Fields(normalize(fields)).Msg(msg)
}

// withValue keeps durations and errors readable in the context
func withValue(ctx zerolog.Context, key string, value interface{}) zerolog.Context {
	switch v := value.(type) {
	case time.Duration:
		return ctx.Str(key, v.String())
	case error:
		return ctx.Str(key, v.Error())
	default:
		return ctx.Interface(key, v)
	}
}

// normalize renders durations and errors as strings; the caller's map is
// left untouched
func normalize(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case time.Duration:
			out[k] = val.String()
		case error:
			out[k] = val.Error()
		default:
			out[k] = v
		}
	}
	return out
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// Initialize replaces the global logger with one built from cfg
func Initialize(cfg *config.LoggingConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetLogger returns the global logger, creating an info-level one on first use
func GetLogger() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return globalLogger
}
