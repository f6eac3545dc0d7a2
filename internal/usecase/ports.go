// Package usecase contains application business rules and ports (interfaces).
// Use cases depend on these interfaces, not concrete implementations.
package usecase

// Logger is a port for leveled key/value logging. Adapters implement this interface.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
