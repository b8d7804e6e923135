// Package api defines wire-format types, converters, and the HTTP client for
// the daemon's admin surface. It translates internal store and scraper models
// into transport-friendly DTOs so CLI and external consumers never couple to
// internal types.
//
// DTOs use camelCase JSON tags. Internal enums (title status, scrape outcome,
// notification kind) are exposed as lowercase strings. Notification payloads
// are passed through as json.RawMessage to avoid double-encoding.
package api
