// Package logger provides the component logger used across logweave.
// Debug and Info are gated on verbose mode; Warn and Error always print.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes structured log lines for one component.
type Logger struct {
	component string
	verbose   func() bool

	mu     sync.Mutex
	writer io.Writer
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err builds an error field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// New creates a logger for a component. The verbose callback is consulted
// per call so a late flag change takes effect; nil means never verbose.
func New(component string, verbose func() bool) *Logger {
	return &Logger{
		component: component,
		verbose:   verbose,
		writer:    os.Stderr,
	}
}

// WithComponent derives a logger for a sub-component sharing the same
// verbosity and writer.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, verbose: l.verbose, writer: l.writer}
}

// SetWriter redirects output, used by tests and by the TUI which owns the
// terminal while running.
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// Debug logs a debug message (verbose only).
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.isVerbose() {
		l.log("DEBUG", msg, fields)
	}
}

// Info logs an informational message (verbose only).
func (l *Logger) Info(msg string, fields ...Field) {
	if l.isVerbose() {
		l.log("INFO", msg, fields)
	}
}

// Warn logs a warning (always shown).
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields)
}

// Error logs an error (always shown).
func (l *Logger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields)
}

func (l *Logger) isVerbose() bool {
	return l.verbose != nil && l.verbose()
}

func (l *Logger) log(level, msg string, fields []Field) {
	timestamp := time.Now().Format("15:04:05.000")
	component := l.component
	if component == "" {
		component = "main"
	}

	var fieldsStr string
	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
		}
		fieldsStr = " [" + strings.Join(parts, " ") + "]"
	}

	line := fmt.Sprintf("[%s] %s [%s] %s%s\n", timestamp, level, component, msg, fieldsStr)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprint(l.writer, line); err != nil {
		// Nowhere left to report a logger write failure.
		_ = err
	}
}
