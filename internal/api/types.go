package api

import (
	"encoding/json"
	"time"
)

// TitleView describes a tracked title in a transport-friendly format.
type TitleView struct {
	ID               int64      `json:"id"`
	CollectionID     string     `json:"collectionId"`
	SourceID         string     `json:"sourceId"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	ChapterCount     int        `json:"chapterCount"`
	LastOutcome      string     `json:"lastOutcome"`
	LastScrapeAt     *time.Time `json:"lastScrapeAt,omitempty"`
	NextScrapeAt     time.Time  `json:"nextScrapeAt"`
	AvgIntervalHours float64    `json:"avgIntervalHours,omitempty"`
	Confidence       float64    `json:"confidence"`
	MissCount        int        `json:"missCount"`
}

// CycleSummary mirrors the most recent scrape cycle.
type CycleSummary struct {
	RunID       string    `json:"runId,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Due         int       `json:"due"`
	Processed   int       `json:"processed"`
	NewChapters int       `json:"newChapters"`
	Errors      int       `json:"errors"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool         `json:"running"`
	PID            int          `json:"pid"`
	DatabasePath   string       `json:"databasePath"`
	LockFilePath   string       `json:"lockFilePath"`
	TitleCount     int          `json:"titleCount"`
	CooldownActive bool         `json:"cooldownActive"`
	CooldownUntil  *time.Time   `json:"cooldownUntil,omitempty"`
	LastCycle      CycleSummary `json:"lastCycle"`
}

// ScrapeResult reports the outcome of a manually triggered scrape.
type ScrapeResult struct {
	TitleID       int64  `json:"titleId"`
	TitleName     string `json:"titleName"`
	Outcome       string `json:"outcome"`
	ChaptersFound int    `json:"chaptersFound"`
	NewChapters   int    `json:"newChapters"`
	DurationMS    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
}

// NotificationView is the transport form of a stored notification. Payload is
// passed through untouched; its shape depends on kind.
type NotificationView struct {
	ID         int64           `json:"id"`
	TitleID    int64           `json:"titleId"`
	Kind       string          `json:"kind"`
	Importance int             `json:"importance"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
	Read       bool            `json:"read"`
	Delivered  bool            `json:"delivered"`
}

// HealthView reports scrape reliability over a trailing window.
type HealthView struct {
	WindowHours   int     `json:"windowHours"`
	Attempts      int     `json:"attempts"`
	Errors        int     `json:"errors"`
	RateLimited   int     `json:"rateLimited"`
	ErrorRate     float64 `json:"errorRate"`
	AvgDurationMS int64   `json:"avgDurationMs"`
	Degraded      bool    `json:"degraded"`
}

// AddTitleRequest registers a collection entry for monitoring.
type AddTitleRequest struct {
	CollectionID string `json:"collectionId"`
	SourceID     string `json:"sourceId"`
	Name         string `json:"name,omitempty"`
}

// TitleListResponse wraps the tracked titles list.
type TitleListResponse struct {
	Titles []TitleView `json:"titles"`
}

// TitleResponse wraps a single title.
type TitleResponse struct {
	Title TitleView `json:"title"`
}

// NotificationListResponse wraps a notification list.
type NotificationListResponse struct {
	Notifications []NotificationView `json:"notifications"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
