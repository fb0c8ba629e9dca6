// Package logging assembles structured slog loggers and formatting helpers used
// across the launcher.
//
// It owns the console and JSON handlers, routes output to stdout and the
// launcher log file, stamps every record with the run's session id and exposes
// context helpers so stage code tags lines with the current stage and resource.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
