package types

// Logger defines methods for structured logging.
//
// The signature follows the key/value convention shared by log/slog and
// zap.SugaredLogger, so either can back it through a thin adapter. Keys are
// snake_case strings; values are arbitrary.
type Logger interface {
	// Debug logs per-cell and per-candidate detail that is too noisy for production.
	Debug(msg string, keysAndValues ...any)

	// Info logs round-level progress.
	Info(msg string, keysAndValues ...any)

	// Warn logs recoverable anomalies, such as a clamped oracle probability.
	Warn(msg string, keysAndValues ...any)

	// Error logs failures that abort a round.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message and terminates the process with os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
}
