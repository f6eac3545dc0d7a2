// Package logging provides concrete logger adapters.
package logging

import (
	"fmt"
	"log"
	"strings"

	"github.com/jamalishaq/wayx/internal/usecase"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name written in each entry.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", raw)
}

// stdLogger adapts log.Logger to the usecase.Logger port.
type stdLogger struct {
	base *log.Logger
	min  Level
}

// NewStdLogger creates a logger adapter backed by a standard logger.
// Debug entries are dropped.
func NewStdLogger(base *log.Logger) usecase.Logger {
	return NewLeveledStdLogger(base, LevelInfo)
}

// NewLeveledStdLogger creates a logger adapter that drops entries below min.
func NewLeveledStdLogger(base *log.Logger, min Level) usecase.Logger {
	return &stdLogger{base: base, min: min}
}

// Debug logs parser and connection diagnostics.
func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	l.print(LevelDebug, msg, keysAndValues)
}

// Info logs informational events.
func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	l.print(LevelInfo, msg, keysAndValues)
}

// Warn logs recoverable failures.
func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	l.print(LevelWarn, msg, keysAndValues)
}

// Error logs error events.
func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	l.print(LevelError, msg, keysAndValues)
}

func (l *stdLogger) print(level Level, msg string, keysAndValues []any) {
	if l == nil || l.base == nil || level < l.min {
		return
	}
	fields := formatKeyValues(keysAndValues...)
	if fields == "" {
		l.base.Printf("level=%s msg=%q", level, msg)
		return
	}
	l.base.Printf("level=%s msg=%q %s", level, msg, fields)
}

// formatKeyValues renders key/value pairs into a log-friendly string.
func formatKeyValues(keysAndValues ...any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	parts := make([]string, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := sanitizeKey(fmt.Sprint(keysAndValues[i]), i/2)
		value := any("<missing>")
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		parts = append(parts, key+"="+formatValue(value))
	}
	return strings.Join(parts, " ")
}

// formatValue quotes values that would otherwise break key=value parsing.
func formatValue(value any) string {
	if err, ok := value.(error); ok {
		value = err.Error()
	}
	text := fmt.Sprint(value)
	if text == "" || strings.ContainsAny(text, " \t\r\n\"=") {
		return fmt.Sprintf("%q", text)
	}
	return text
}

// sanitizeKey normalizes logging keys and applies deterministic fallbacks.
func sanitizeKey(key string, index int) string {
	normalized := strings.TrimSpace(strings.ToLower(strings.ReplaceAll(key, " ", "_")))
	if normalized == "" {
		return fmt.Sprintf("field_%d", index)
	}
	return normalized
}
