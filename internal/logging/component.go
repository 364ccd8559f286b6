package logging

import "github.com/arloliu/nucleate/types"

// componentLogger prefixes every record with a "component" key.
type componentLogger struct {
	next types.Logger
	name string
}

// Component returns a logger that tags every record with component=name.
//
// A nil logger yields a NopLogger, so callers can pass optional loggers straight
// through.
//
// Parameters:
//   - logger: Logger to wrap (may be nil)
//   - name: Component name, e.g. "generator" or "refine"
//
// Returns:
//   - types.Logger: Tagged logger
//
// Example:
//
//	log := logging.Component(cfgLogger, "validator")
//	log.Info("conflicts found", "overlap", 2)
func Component(logger types.Logger, name string) types.Logger {
	if logger == nil {
		return NewNop()
	}
	if _, ok := logger.(*NopLogger); ok {
		return logger
	}
	if sl, ok := logger.(*SlogLogger); ok {
		return sl.With("component", name)
	}

	return &componentLogger{next: logger, name: name}
}

func (c *componentLogger) kv(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)+2)
	out = append(out, "component", c.name)

	return append(out, keysAndValues...)
}

func (c *componentLogger) Debug(msg string, keysAndValues ...any) {
	c.next.Debug(msg, c.kv(keysAndValues)...)
}

func (c *componentLogger) Info(msg string, keysAndValues ...any) {
	c.next.Info(msg, c.kv(keysAndValues)...)
}

func (c *componentLogger) Warn(msg string, keysAndValues ...any) {
	c.next.Warn(msg, c.kv(keysAndValues)...)
}

func (c *componentLogger) Error(msg string, keysAndValues ...any) {
	c.next.Error(msg, c.kv(keysAndValues)...)
}

func (c *componentLogger) Fatal(msg string, keysAndValues ...any) {
	c.next.Fatal(msg, c.kv(keysAndValues)...)
}
