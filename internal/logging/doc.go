// Package logging assembles structured slog loggers and formatting helpers used
// across deckhand.
//
// It owns the configurable console/JSON handlers and exposes context-aware
// helpers so command round trips are tagged with correlation IDs and device
// sessions with session IDs. Console output also goes to a JSON log file when
// a log directory is configured. The package provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
