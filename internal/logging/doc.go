// Package logging provides slog construction with console and JSON handlers
// plus standardized attribute helpers and field names shared across the
// daemon's components.
package logging
