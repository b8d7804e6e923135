package api

import (
	"encoding/json"

	"mangawatch/internal/scraper"
	"mangawatch/internal/store"
)

// FromTitleOverview converts a joined title row to its API representation.
func FromTitleOverview(overview *store.TitleOverview) TitleView {
	if overview == nil {
		return TitleView{}
	}
	view := TitleView{
		ID:           overview.Title.ID,
		CollectionID: overview.Title.CollectionID,
		SourceID:     overview.Title.SourceID,
		Name:         overview.Title.Name,
		Status:       string(overview.Title.Status),
		ChapterCount: overview.ChapterCount,
		LastOutcome:  string(overview.Schedule.LastOutcome),
		LastScrapeAt: overview.Schedule.LastScrapeAt,
		NextScrapeAt: overview.Schedule.NextScrapeAt,
		Confidence:   overview.Schedule.Confidence,
		MissCount:    overview.Schedule.MissCount,
	}
	if overview.Schedule.AvgInterval != nil {
		view.AvgIntervalHours = overview.Schedule.AvgInterval.Hours()
	}
	return view
}

// FromTitle converts a bare title record, without schedule details.
func FromTitle(title *store.Title) TitleView {
	if title == nil {
		return TitleView{}
	}
	return TitleView{
		ID:           title.ID,
		CollectionID: title.CollectionID,
		SourceID:     title.SourceID,
		Name:         title.Name,
		Status:       string(title.Status),
	}
}

// FromTitleResult converts a scrape pipeline result.
func FromTitleResult(result *scraper.TitleResult) ScrapeResult {
	if result == nil {
		return ScrapeResult{}
	}
	dto := ScrapeResult{
		TitleID:       result.TitleID,
		TitleName:     result.TitleName,
		Outcome:       string(result.Outcome),
		ChaptersFound: result.ChaptersFound,
		NewChapters:   result.NewChapters,
		DurationMS:    result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		dto.Error = result.Err.Error()
	}
	return dto
}

// FromCycleSummary converts the orchestrator's cycle summary.
func FromCycleSummary(summary scraper.CycleSummary) CycleSummary {
	return CycleSummary{
		RunID:       summary.RunID,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
		Due:         summary.Due,
		Processed:   summary.Processed,
		NewChapters: summary.NewChapters,
		Errors:      summary.Errors,
	}
}

// FromNotification converts a stored notification.
func FromNotification(notification *store.Notification) NotificationView {
	if notification == nil {
		return NotificationView{}
	}
	return NotificationView{
		ID:         notification.ID,
		TitleID:    notification.TitleID,
		Kind:       string(notification.Kind),
		Importance: notification.Importance,
		Payload:    json.RawMessage(notification.Payload),
		CreatedAt:  notification.CreatedAt,
		Read:       notification.Read,
		Delivered:  notification.Delivered,
	}
}

// FromScrapeStats converts the trailing-window health aggregate.
func FromScrapeStats(windowHours int, stats store.ScrapeStats, degraded bool) HealthView {
	return HealthView{
		WindowHours:   windowHours,
		Attempts:      stats.Attempts,
		Errors:        stats.Errors,
		RateLimited:   stats.RateLimited,
		ErrorRate:     stats.ErrorRate,
		AvgDurationMS: stats.AvgDuration.Milliseconds(),
		Degraded:      degraded,
	}
}
