// Package observability provides structured logging, context propagation,
// and Prometheus metrics for the review console.
//
// Logging is built on zerolog and configured once at startup via NewLogger;
// components derive their own loggers with .With().Str("component", ...).
// Context helpers carry request, workflow, and session identifiers across
// the client's async boundaries so every log line and metric can be tied
// back to the workflow it concerns.
//
// Metrics follow the one-struct pattern: NewMetrics registers everything via
// promauto, and callers use the Record* helpers rather than touching the
// collectors directly.
package observability
