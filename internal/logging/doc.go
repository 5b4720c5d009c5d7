// Package logging assembles structured slog loggers and formatting helpers used
// across pmxfactory.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so assembly code can tag log
// lines with correlation IDs and assembly kinds. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
