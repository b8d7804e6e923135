// Package store persists tracked titles, observed chapters, scrape schedules,
// the scrape attempt log, and notifications in SQLite.
//
// Write ownership is split by component: the scheduling engine owns schedule
// updates, the comparator path owns chapter inserts, the notification manager
// owns notification creation, and the relay owns the delivered transition.
// The store enforces the storage-level invariants behind those rules: chapter
// rows are insert-only and unique per (title, source chapter id), the scrape
// log is append-only, and delivered flips at most once via a guarded update.
package store
