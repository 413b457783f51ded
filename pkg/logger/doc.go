// Package logger is the run's operator log stream.
//
// Components depend on the Logger interface and attach context with
// WithField/WithFields; each child is a zerolog context logger, so fields are
// serialized once rather than per event.
//
// Output format follows LoggingConfig.Format. In "auto" mode a terminal gets
// zerolog's console writer and anything else (CI) gets JSON lines, which is
// also what the optional log file receives.
package logger
