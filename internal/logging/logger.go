// Package logging wraps a process-wide charmbracelet logger.
//
// Until Init or InitWriter is called every helper is a no-op, so library
// packages can log unconditionally without forcing callers to configure
// anything.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

var (
	// Logger is nil until Init or InitWriter.
	Logger *log.Logger

	// logFile is today's log file when Init opened one.
	logFile *os.File
)

// Dir returns the directory daily log files are written to.
func Dir() string {
	return filepath.Join(xdg.StateHome, "pulse", "logs")
}

// Init opens today's log file under dir (Dir() when empty) and points the
// global logger at it.
func Init(dir string) error {
	if dir == "" {
		dir = Dir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	name := fmt.Sprintf("pulse-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f

	InitWriter(f, log.DebugLevel)
	Logger.Info("pulse started")
	return nil
}

// InitWriter points the global logger at w. Used by tests and by the CLI
// when --verbose sends logs to stderr.
func InitWriter(w io.Writer, level log.Level) {
	Logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Close logs the shutdown line and closes the log file, if any.
func Close() {
	if Logger != nil {
		Logger.Info("pulse shutting down")
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs at info level.
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Debug logs at debug level.
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Warn logs at warn level.
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs at error level.
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// WithPrefix returns a logger with a prefix, or nil before Init.
func WithPrefix(prefix string) *log.Logger {
	if Logger != nil {
		return Logger.WithPrefix(prefix)
	}
	return nil
}
