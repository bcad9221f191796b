package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultLogFile = "logs/foundry_jumpstart.log"

// Logger wraps logrus with file lifecycle management. The zero value is not
// usable; construct one with CreateLogger or CreateTestLogger.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// CreateLogger builds a logger writing to logFile (created along with its
// parent directory when missing). When enableStdout is true log lines are
// teed to stdout as well. Supported formats are "json" and "text"; levels
// follow logrus ("debug", "info", "warn", "error").
func CreateLogger(logFile, level, format string, enableStdout bool) (Logger, error) {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	}

	if logFile == "" {
		logFile = defaultLogFile
	}
	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Logger{}, fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Logger{}, fmt.Errorf("open log file %s: %w", logFile, err)
	}

	if enableStdout {
		log.SetOutput(io.MultiWriter(file, os.Stdout))
	} else {
		log.SetOutput(file)
	}

	return Logger{Logger: log, file: file}, nil
}

// CreateTestLogger returns a debug-level logger that discards all output.
// Tests use it so components never write files from the test tree.
func CreateTestLogger() Logger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetOutput(io.Discard)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return Logger{Logger: log}
}

// Discard returns a logger that drops everything. Components constructed
// without an explicit logger fall back to it.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return Logger{Logger: log}
}

// Close flushes and closes the underlying log file when one was opened.
func (l Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// IsInitialized reports whether the logger carries a live logrus instance.
func (l Logger) IsInitialized() bool {
	return l.Logger != nil
}
