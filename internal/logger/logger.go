// Package logger is the leveled logging interface shared by tunnelup's
// packages. Remote steps log the commands they run at debug level; the
// operator sees warnings by default and everything with --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// DebugEnv is the environment variable that enables debug output.
const DebugEnv = "TUNNELUP_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// tag is printed between the prefix and the message.
func (l Level) tag() string {
	switch l {
	case LevelWarn:
		return "WARN: "
	case LevelError:
		return "ERROR: "
	}
	return ""
}

// verbose forces every level on (--verbose).
var verbose atomic.Bool

// SetVerbose turns debug output on or off for every writer logger.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether debug output is on, through --verbose or
// TUNNELUP_DEBUG.
func Verbose() bool {
	return verbose.Load() || os.Getenv(DebugEnv) != ""
}

// writerLogger writes one line per message to w. Messages below min are
// dropped unless Verbose is on.
type writerLogger struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	min    Level
}

// New returns a logger writing to w. Lines look like "[workflow] WARN: msg".
func New(w io.Writer, prefix string, min Level) Logger {
	return &writerLogger{w: w, prefix: prefix, min: min}
}

// NewEnvLogger returns a stderr logger that prints info and above, and
// debug messages when TUNNELUP_DEBUG is set or --verbose is on.
func NewEnvLogger(prefix string) Logger {
	return New(os.Stderr, prefix, LevelInfo)
}

func (l *writerLogger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args) }
func (l *writerLogger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args) }
func (l *writerLogger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args) }
func (l *writerLogger) Error(format string, args ...interface{}) { l.log(LevelError, format, args) }

func (l *writerLogger) log(level Level, format string, args []interface{}) {
	if level < l.min && !Verbose() {
		return
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s%s\n", l.prefix, level.tag(), msg)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for concurrent use; the device-code helper logs from its own goroutine.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) add(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level.String(), Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add(LevelDebug, format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add(LevelInfo, format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add(LevelWarn, format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add(LevelError, format, args...) }

// HasLevel returns true if any message was logged at the given level
// ("debug", "info", "warn" or "error").
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewEnvLogger("[tunnelup]")
)

// Default returns the default logger for the package.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
