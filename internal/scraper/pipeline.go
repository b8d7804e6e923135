package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mangawatch/internal/compare"
	"mangawatch/internal/logging"
	"mangawatch/internal/pattern"
	"mangawatch/internal/source"
	"mangawatch/internal/store"
	"mangawatch/internal/textutil"
)

// TitleResult is the outcome of one per-title pipeline run, exposed to the
// admin surface and the manual trigger endpoint.
type TitleResult struct {
	TitleID       int64
	TitleName     string
	Outcome       store.ScrapeOutcome
	ChaptersFound int
	NewChapters   int
	Duration      time.Duration
	Err           error
	// Fatal marks infrastructure faults that should abort the rest of the
	// cycle, as opposed to local failures that only affect this title.
	Fatal bool
}

// processTitle drives the full pipeline for one title: fetch metadata, fetch
// chapters, diff, persist, notify, analyze, reschedule, log. Step order is
// load-bearing: the schedule is only advanced after chapters are persisted,
// so a crash in between leaves the title due and the next run re-converges
// through chapter-id dedup.
func (o *Orchestrator) processTitle(ctx context.Context, title *store.Title, schedule *store.Schedule, runID string, logger *slog.Logger) *TitleResult {
	started := time.Now()
	result := &TitleResult{TitleID: title.ID, TitleName: title.Name}
	logger = logger.With(logging.Int64(logging.FieldTitleID, title.ID))

	finish := func() *TitleResult {
		result.Duration = time.Since(started)
		o.appendLog(ctx, title.ID, runID, started, result, logger)
		return result
	}

	// Metadata first: a status change affects how this very run reschedules.
	status := title.Status
	var meta *source.Metadata
	err := o.policy.Do(ctx, func() error {
		var fetchErr error
		meta, fetchErr = o.client.FetchMetadata(ctx, title.SourceID)
		return fetchErr
	})
	switch {
	case err == nil:
		status = o.applyStatusChange(ctx, title, meta, logger)
	case errors.Is(err, source.ErrRateLimited):
		result.Outcome = store.OutcomeRateLimited
		result.Err = err
		return finish()
	default:
		// Metadata is advisory; a failed fetch does not block chapter
		// monitoring.
		logger.Warn("metadata fetch failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "metadata_fetch_failed"),
		)
	}

	var list *source.ChapterList
	err = o.policy.Do(ctx, func() error {
		var fetchErr error
		list, fetchErr = o.client.FetchChapterList(ctx, title.SourceID)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, source.ErrRateLimited) {
			result.Outcome = store.OutcomeRateLimited
		} else {
			result.Outcome = store.OutcomeError
		}
		result.Err = err
		o.rescheduleAfterError(ctx, title.ID, schedule, status, logger)
		return finish()
	}
	result.ChaptersFound = len(list.Chapters)
	o.syncTitleName(ctx, title, list.TitleName, logger)
	result.TitleName = title.Name

	known, err := o.store.KnownChapterIDs(ctx, title.ID)
	if err != nil {
		result.Outcome = store.OutcomeError
		result.Err = err
		result.Fatal = true
		return finish()
	}

	fresh := compare.FindNewChapters(known, list.Chapters)
	result.NewChapters = len(fresh)

	if len(fresh) > 0 {
		if err := o.persistAndNotify(ctx, title, fresh, logger); err != nil {
			result.Outcome = store.OutcomeError
			result.Err = err
			result.Fatal = true
			return finish()
		}
		result.Outcome = store.OutcomeNewChapters
	} else {
		result.Outcome = store.OutcomeNoChange
	}

	// Analysis reads the full persisted history, including what this run
	// just inserted.
	analysis := o.analyze(ctx, title.ID, logger)
	o.engine.Reschedule(schedule, status, analysis, result.Outcome)
	if err := o.store.SaveSchedule(ctx, schedule); err != nil {
		result.Err = err
		result.Fatal = true
		logger.Error("schedule save failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "schedule_save_failed"),
			logging.String(logging.FieldErrorHint, "title stays due and will be retried"),
		)
		return finish()
	}

	if len(fresh) > 0 {
		logger.Info("new chapters found",
			logging.Int("new_chapters", len(fresh)),
			logging.Int("chapters_found", result.ChaptersFound),
			logging.Time("next_scrape", schedule.NextScrapeAt),
		)
	}
	return finish()
}

// applyStatusChange persists an upstream lifecycle transition and emits the
// status-change notification. Chapters found in the same run are still
// notified: the user already has unread content, the title going dormant
// does not change that.
func (o *Orchestrator) applyStatusChange(ctx context.Context, title *store.Title, meta *source.Metadata, logger *slog.Logger) store.TitleStatus {
	newStatus := store.ParseTitleStatus(meta.Status)
	if newStatus == store.TitleUnknown || newStatus == title.Status {
		return title.Status
	}

	oldStatus := title.Status
	if err := o.store.SetTitleStatus(ctx, title.ID, newStatus); err != nil {
		logger.Warn("status update failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "status_update_failed"),
		)
		return title.Status
	}
	if _, err := o.manager.CreateStatusChangeNotification(ctx, title, oldStatus, newStatus); err != nil {
		logger.Warn("status change notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_create_failed"),
		)
	}
	logger.Info("title status changed",
		logging.String("old_status", string(oldStatus)),
		logging.String("new_status", string(newStatus)),
	)
	title.Status = newStatus
	return newStatus
}

// syncTitleName adopts the upstream canonical name when it drifts from the
// stored one, so notifications use what the site actually displays.
func (o *Orchestrator) syncTitleName(ctx context.Context, title *store.Title, upstreamName string, logger *slog.Logger) {
	normalized := textutil.NormalizeTitleName(upstreamName)
	if normalized == "" || normalized == title.Name {
		return
	}
	if err := o.store.RenameTitle(ctx, title.ID, normalized); err != nil {
		logger.Warn("title rename failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "title_rename_failed"),
		)
		return
	}
	logger.Info("title name updated from upstream",
		logging.String("old_name", title.Name),
		logging.String("new_name", normalized),
	)
	title.Name = normalized
}

// persistAndNotify inserts the fresh chapters and creates either one batch
// notification or one per chapter, depending on the batching threshold.
func (o *Orchestrator) persistAndNotify(ctx context.Context, title *store.Title, fresh []source.ChapterRecord, logger *slog.Logger) error {
	rows := make([]store.Chapter, 0, len(fresh))
	for _, chapter := range fresh {
		rows = append(rows, store.Chapter{
			SourceChapterID: chapter.ID,
			Label:           chapter.Label,
			PublishedAt:     chapter.PublishedAt,
			Views:           chapter.Views,
		})
	}
	inserted, err := o.store.InsertChapters(ctx, title.ID, rows)
	if err != nil {
		return err
	}
	if inserted < len(rows) {
		// Possible after a crash between a previous insert and its schedule
		// update; the dedup constraint absorbed the overlap.
		logger.Info("duplicate chapters skipped on insert",
			logging.Int("skipped", len(rows)-inserted),
		)
	}

	if compare.ShouldBatch(fresh, o.cfg.Notifications.BatchThreshold) {
		_, err = o.manager.CreateBatchNotification(ctx, title, fresh)
		return err
	}
	for _, chapter := range fresh {
		if _, err := o.manager.CreateNewChapterNotification(ctx, title, chapter); err != nil {
			return err
		}
	}
	return nil
}

// analyze runs pattern inference over the persisted history. Analysis errors
// degrade to an empty result; a broken metric never blocks scraping.
func (o *Orchestrator) analyze(ctx context.Context, titleID int64, logger *slog.Logger) pattern.Result {
	stamps, err := o.store.ChapterTimestamps(ctx, titleID)
	if err != nil {
		logger.Warn("history read failed, scheduling without pattern",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pattern_history_failed"),
		)
		return pattern.Result{}
	}
	return pattern.Analyze(stamps)
}

// rescheduleAfterError still advances the schedule so a persistently failing
// title cannot hot-loop, using whatever history is already persisted.
func (o *Orchestrator) rescheduleAfterError(ctx context.Context, titleID int64, schedule *store.Schedule, status store.TitleStatus, logger *slog.Logger) {
	analysis := o.analyze(ctx, titleID, logger)
	o.engine.Reschedule(schedule, status, analysis, store.OutcomeError)
	if err := o.store.SaveSchedule(ctx, schedule); err != nil {
		logger.Error("schedule save failed after scrape error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "schedule_save_failed"),
		)
	}
}

func (o *Orchestrator) appendLog(ctx context.Context, titleID int64, runID string, started time.Time, result *TitleResult, logger *slog.Logger) {
	entry := &store.ScrapeLogEntry{
		TitleID:       titleID,
		RunID:         runID,
		StartedAt:     started,
		FinishedAt:    started.Add(result.Duration),
		Duration:      result.Duration,
		Outcome:       result.Outcome,
		ChaptersFound: result.ChaptersFound,
		NewChapters:   result.NewChapters,
	}
	if result.Err != nil {
		entry.ErrorMessage = result.Err.Error()
	}
	if err := o.store.AppendScrapeLog(ctx, entry); err != nil {
		logger.Error("scrape log append failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "scrape_log_failed"),
		)
	}
}
