// Package logging builds the structured loggers used by stepflow queues and
// the stepflow command.
//
// Loggers are plain *slog.Logger values. Verbosity of queue diagnostics is
// controlled separately by a [Mode]: verbose queues log every step start and
// completion, quiet queues only log warnings and errors.
//
// The default mode is read from the STEPFLOW_ENV environment variable and
// falls back to "production":
//
//	STEPFLOW_ENV=development stepflow run plan.yaml
package logging
