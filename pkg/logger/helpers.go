package logger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return &eventLogger{zl: zerolog.Nop()}
}

// LogRequest records one HTTP exchange. 4xx and 5xx are warnings, anything
// else is debug noise.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if statusCode >= 400 {
		l.WarnWithFields("HTTP request failed", fields)
		return
	}
	l.DebugWithFields("HTTP request completed", fields)
}

// LogBatchProgress logs the driver's position in the pending list
func LogBatchProgress(l Logger, itemCode string, index, total int) {
	pct := 0.0
	if total > 0 {
		pct = float64(index) * 100 / float64(total)
	}
	l.InfoWithFields("Processing item", map[string]interface{}{
		"item_code": itemCode,
		"progress":  fmt.Sprintf("%d/%d (%.1f%%)", index, total, pct),
	})
}
