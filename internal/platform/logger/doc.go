// Package logger configures the application's structured logging. Setup
// builds a JSON slog logger at the configured level and installs it as the
// process default; WithLogger and FromContext carry request-scoped loggers
// (with trace IDs attached) through context.
package logger
