// Package logging constructs the slog loggers used across lumen.
//
// Console output goes through a tint handler with color disabled when the
// destination is not a terminal; the json format uses the stdlib JSON handler
// with normalized ts/level keys. Attr helpers keep call sites terse and
// NewComponentLogger stamps the component field that groups log lines per
// subsystem.
package logging
