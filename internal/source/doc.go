// Package source implements the read-only client for the upstream chapter
// site. Failures are classified with sentinel errors so callers can
// distinguish throttling from transient and permanent faults.
package source
