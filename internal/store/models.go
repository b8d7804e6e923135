package store

import (
	"strings"
	"time"
)

// TitleStatus is the upstream lifecycle state of a tracked title.
type TitleStatus string

const (
	TitleOngoing   TitleStatus = "ongoing"
	TitleCompleted TitleStatus = "completed"
	TitleDropped   TitleStatus = "dropped"
	TitlePaused    TitleStatus = "paused"
	TitleUnknown   TitleStatus = "unknown"
)

var titleStatusSet = map[TitleStatus]struct{}{
	TitleOngoing:   {},
	TitleCompleted: {},
	TitleDropped:   {},
	TitlePaused:    {},
	TitleUnknown:   {},
}

// ParseTitleStatus maps free-form upstream status text to a TitleStatus,
// falling back to TitleUnknown.
func ParseTitleStatus(value string) TitleStatus {
	status := TitleStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := titleStatusSet[status]; ok {
		return status
	}
	return TitleUnknown
}

// Dormant reports whether the title no longer warrants frequent monitoring.
func (s TitleStatus) Dormant() bool {
	return s == TitleCompleted || s == TitleDropped
}

// Title is one collection entry registered for chapter monitoring.
type Title struct {
	ID           int64
	CollectionID string
	SourceID     string
	Name         string
	Status       TitleStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chapter is one observed chapter. Rows are immutable once inserted.
type Chapter struct {
	ID              int64
	TitleID         int64
	SourceChapterID string
	Label           string
	PublishedAt     time.Time
	Views           int64
	CreatedAt       time.Time
}

// ScrapeOutcome classifies the result of one scrape attempt.
type ScrapeOutcome string

const (
	OutcomeNone        ScrapeOutcome = "none"
	OutcomeNewChapters ScrapeOutcome = "new"
	OutcomeNoChange    ScrapeOutcome = "no_change"
	OutcomeError       ScrapeOutcome = "error"
	OutcomeRateLimited ScrapeOutcome = "rate_limited"
)

// Schedule holds the per-title scraping state, one row per title.
type Schedule struct {
	TitleID      int64
	NextScrapeAt time.Time
	LastScrapeAt *time.Time
	LastOutcome  ScrapeOutcome
	// AvgInterval is the inferred release interval, nil while unknown.
	AvgInterval *time.Duration
	Confidence  float64
	MissCount   int
	UpdatedAt   time.Time
}

// ScrapeLogEntry records one scrape attempt. Entries are append-only.
type ScrapeLogEntry struct {
	ID            int64
	TitleID       int64
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Duration      time.Duration
	Outcome       ScrapeOutcome
	ChaptersFound int
	NewChapters   int
	ErrorMessage  string
}

// NotificationKind identifies what a notification describes.
type NotificationKind string

const (
	KindNewChapter   NotificationKind = "new_chapter"
	KindChapterBatch NotificationKind = "chapter_batch"
	KindStatusChange NotificationKind = "status_change"
)

// Importance returns the ordinal rank used for delivery ordering. Status
// changes outrank batches, which outrank single chapters.
func (k NotificationKind) Importance() int {
	switch k {
	case KindStatusChange:
		return 3
	case KindChapterBatch:
		return 2
	default:
		return 1
	}
}

// Notification is one user-facing event pending or past delivery. Payload is
// a JSON document whose shape depends on Kind.
type Notification struct {
	ID         int64
	TitleID    int64
	Kind       NotificationKind
	Importance int
	Payload    string
	CreatedAt  time.Time
	Read       bool
	Delivered  bool
}

// ScrapeStats aggregates scrape_log rows over a trailing window.
type ScrapeStats struct {
	Attempts    int
	Errors      int
	RateLimited int
	ErrorRate   float64
	AvgDuration time.Duration
}

// Degraded reports whether the error rate breaches the supplied threshold.
// Windows with no attempts are healthy by definition.
func (s ScrapeStats) Degraded(threshold float64) bool {
	if s.Attempts == 0 {
		return false
	}
	return s.ErrorRate > threshold
}
