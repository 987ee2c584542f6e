package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DEBUG level for detailed troubleshooting information
	DEBUG LogLevel = iota
	// INFO level for general operational information
	INFO
	// WARN level for potentially harmful situations
	WARN
	// ERROR level for error events that might still allow the application to continue
	ERROR
	// FATAL level for severe error events that will lead the application to abort
	FATAL
)

var (
	// levelMap maps string representations to log levels
	levelMap = map[string]LogLevel{
		"DEBUG": DEBUG,
		"INFO":  INFO,
		"WARN":  WARN,
		"ERROR": ERROR,
		"FATAL": FATAL,
	}
	logrusLevels = map[LogLevel]logrus.Level{
		DEBUG: logrus.DebugLevel,
		INFO:  logrus.InfoLevel,
		WARN:  logrus.WarnLevel,
		ERROR: logrus.ErrorLevel,
		FATAL: logrus.FatalLevel,
	}
	base    = newBase()
	logFile *lumberjack.Logger
)

// Options configures the logger
type Options struct {
	Level string
	// File enables a rotated log file next to stdout when set
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init initializes the logger with the given options
func Init(opts Options) error {
	if err := setupLogFile(opts); err != nil {
		base.Warnf("Failed to setup log file: %v, logging to stdout only", err)
	}

	if opts.Level == "" {
		setLevel(INFO)
		return nil
	}

	level, exists := levelMap[strings.ToUpper(opts.Level)]
	if !exists {
		base.Warnf("Invalid log level: %s, defaulting to INFO", opts.Level)
		setLevel(INFO)
		return nil
	}

	setLevel(level)
	return nil
}

func setLevel(level LogLevel) {
	base.SetLevel(logrusLevels[level])
}

// SetOutput redirects log output, mostly useful in tests
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithFields returns a structured entry on the shared logger
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Debug logs a message at DEBUG level
func Debug(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

// Info logs a message at INFO level
func Info(format string, args ...interface{}) {
	base.Infof(format, args...)
}

// Warn logs a message at WARN level
func Warn(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

// Error logs a message at ERROR level
func Error(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

// setupLogFile tees output into a rotated file when one is configured
func setupLogFile(opts Options) error {
	if opts.File == "" {
		return nil
	}

	logDir := filepath.Dir(opts.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// zero MaxBackups / MaxAgeDays keep every rotated file
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}

	logFile = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	base.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return nil
}

// Close flushes and closes the log file, if any
func Close() {
	if logFile != nil {
		base.SetOutput(os.Stdout)
		logFile.Close()
		logFile = nil
	}
}
