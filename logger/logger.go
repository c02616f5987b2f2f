package logger

// Logger is the minimal structured logging interface used by the engine and
// gate. Implementations take alternating key/value pairs, which keeps the
// interface small and easy to mock in tests.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation/trace ID string for each decision.
type TraceIDFunc func() string // It should be cheap and safe for concurrent calls.
