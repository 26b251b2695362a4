// Package logging defines the structured-logging contract shared by the
// server, scheduler, and HTTP layer. The slog-backed implementation in this
// package is the only one today.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// interpreted as alternating key-value pairs:
//
//	log.Info(ctx, "starting server", "addr", addr)
type Logger interface {
	// Debug logs fine-grained diagnostics, usually suppressed in production.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
