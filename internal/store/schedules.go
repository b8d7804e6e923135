package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const scheduleColumns = "title_id, next_scrape_at, last_scrape_at, last_outcome, avg_interval_seconds, confidence, miss_count, updated_at"

// DueTitle pairs a title with its schedule for cycle selection.
type DueTitle struct {
	Title    Title
	Schedule Schedule
}

// GetSchedule returns the schedule for a title, or nil when absent.
func (s *Store) GetSchedule(ctx context.Context, titleID int64) (*Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE title_id = ?", titleID)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return schedule, err
}

// ListDue returns every title whose next scrape time has elapsed, ordered by
// how overdue it is. Titles not due are not returned at all.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]*DueTitle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.collection_id, t.source_id, t.name, t.status, t.created_at, t.updated_at,
                s.title_id, s.next_scrape_at, s.last_scrape_at, s.last_outcome,
                s.avg_interval_seconds, s.confidence, s.miss_count, s.updated_at
         FROM titles t
         JOIN schedules s ON s.title_id = t.id
         WHERE s.next_scrape_at <= ?
         ORDER BY s.next_scrape_at`,
		formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due titles: %w", err)
	}
	defer rows.Close()

	var due []*DueTitle
	for rows.Next() {
		entry, err := scanDueTitle(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, entry)
	}
	return due, rows.Err()
}

// TitleOverview joins a title, its schedule, and its chapter count for the
// admin and CLI list views.
type TitleOverview struct {
	Title        Title
	Schedule     Schedule
	ChapterCount int
}

// ListTitleOverviews returns every tracked title with its schedule and
// chapter count, ordered by name.
func (s *Store) ListTitleOverviews(ctx context.Context) ([]*TitleOverview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.collection_id, t.source_id, t.name, t.status, t.created_at, t.updated_at,
                s.title_id, s.next_scrape_at, s.last_scrape_at, s.last_outcome,
                s.avg_interval_seconds, s.confidence, s.miss_count, s.updated_at,
                COALESCE(c.chapter_count, 0)
         FROM titles t
         JOIN schedules s ON s.title_id = t.id
         LEFT JOIN (SELECT title_id, COUNT(1) AS chapter_count FROM chapters GROUP BY title_id) c
            ON c.title_id = t.id
         ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("query title overviews: %w", err)
	}
	defer rows.Close()

	var overviews []*TitleOverview
	for rows.Next() {
		overview, err := scanTitleOverview(rows)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, overview)
	}
	return overviews, rows.Err()
}

// SaveSchedule upserts a schedule row. The scheduling engine is the only
// writer; it always writes the full row it computed.
func (s *Store) SaveSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return errors.New("schedule is required")
	}
	schedule.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (title_id, next_scrape_at, last_scrape_at, last_outcome, avg_interval_seconds, confidence, miss_count, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (title_id) DO UPDATE SET
            next_scrape_at = excluded.next_scrape_at,
            last_scrape_at = excluded.last_scrape_at,
            last_outcome = excluded.last_outcome,
            avg_interval_seconds = excluded.avg_interval_seconds,
            confidence = excluded.confidence,
            miss_count = excluded.miss_count,
            updated_at = excluded.updated_at`,
		schedule.TitleID,
		formatTime(schedule.NextScrapeAt),
		nullableTime(schedule.LastScrapeAt),
		schedule.LastOutcome,
		nullableSeconds(schedule.AvgInterval),
		schedule.Confidence,
		schedule.MissCount,
		formatTime(schedule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*Schedule, error) {
	var (
		schedule    Schedule
		nextRaw     string
		lastRaw     sql.NullString
		outcomeStr  string
		intervalSec sql.NullInt64
		updatedRaw  string
	)
	if err := scanner.Scan(
		&schedule.TitleID,
		&nextRaw,
		&lastRaw,
		&outcomeStr,
		&intervalSec,
		&schedule.Confidence,
		&schedule.MissCount,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	var err error
	if schedule.NextScrapeAt, err = parseTimeString(nextRaw); err != nil {
		return nil, err
	}
	if lastRaw.Valid {
		parsed, err := parseTimeString(lastRaw.String)
		if err != nil {
			return nil, err
		}
		schedule.LastScrapeAt = &parsed
	}
	schedule.LastOutcome = ScrapeOutcome(outcomeStr)
	if intervalSec.Valid {
		interval := time.Duration(intervalSec.Int64) * time.Second
		schedule.AvgInterval = &interval
	}
	if schedule.UpdatedAt, err = parseTimeString(updatedRaw); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func scanTitleOverview(scanner interface{ Scan(dest ...any) error }) (*TitleOverview, error) {
	var (
		overview    TitleOverview
		statusStr   string
		tCreatedRaw string
		tUpdatedRaw string
		nextRaw     string
		lastRaw     sql.NullString
		outcomeStr  string
		intervalSec sql.NullInt64
		sUpdatedRaw string
	)
	if err := scanner.Scan(
		&overview.Title.ID,
		&overview.Title.CollectionID,
		&overview.Title.SourceID,
		&overview.Title.Name,
		&statusStr,
		&tCreatedRaw,
		&tUpdatedRaw,
		&overview.Schedule.TitleID,
		&nextRaw,
		&lastRaw,
		&outcomeStr,
		&intervalSec,
		&overview.Schedule.Confidence,
		&overview.Schedule.MissCount,
		&sUpdatedRaw,
		&overview.ChapterCount,
	); err != nil {
		return nil, fmt.Errorf("scan title overview: %w", err)
	}

	overview.Title.Status = ParseTitleStatus(statusStr)
	overview.Schedule.LastOutcome = ScrapeOutcome(outcomeStr)

	var err error
	if overview.Title.CreatedAt, err = parseTimeString(tCreatedRaw); err != nil {
		return nil, err
	}
	if overview.Title.UpdatedAt, err = parseTimeString(tUpdatedRaw); err != nil {
		return nil, err
	}
	if overview.Schedule.NextScrapeAt, err = parseTimeString(nextRaw); err != nil {
		return nil, err
	}
	if lastRaw.Valid {
		parsed, err := parseTimeString(lastRaw.String)
		if err != nil {
			return nil, err
		}
		overview.Schedule.LastScrapeAt = &parsed
	}
	if intervalSec.Valid {
		interval := time.Duration(intervalSec.Int64) * time.Second
		overview.Schedule.AvgInterval = &interval
	}
	if overview.Schedule.UpdatedAt, err = parseTimeString(sUpdatedRaw); err != nil {
		return nil, err
	}
	return &overview, nil
}

func scanDueTitle(scanner interface{ Scan(dest ...any) error }) (*DueTitle, error) {
	var (
		entry       DueTitle
		statusStr   string
		tCreatedRaw string
		tUpdatedRaw string
		nextRaw     string
		lastRaw     sql.NullString
		outcomeStr  string
		intervalSec sql.NullInt64
		sUpdatedRaw string
	)
	if err := scanner.Scan(
		&entry.Title.ID,
		&entry.Title.CollectionID,
		&entry.Title.SourceID,
		&entry.Title.Name,
		&statusStr,
		&tCreatedRaw,
		&tUpdatedRaw,
		&entry.Schedule.TitleID,
		&nextRaw,
		&lastRaw,
		&outcomeStr,
		&intervalSec,
		&entry.Schedule.Confidence,
		&entry.Schedule.MissCount,
		&sUpdatedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan due title: %w", err)
	}

	entry.Title.Status = ParseTitleStatus(statusStr)
	entry.Schedule.LastOutcome = ScrapeOutcome(outcomeStr)

	var err error
	if entry.Title.CreatedAt, err = parseTimeString(tCreatedRaw); err != nil {
		return nil, err
	}
	if entry.Title.UpdatedAt, err = parseTimeString(tUpdatedRaw); err != nil {
		return nil, err
	}
	if entry.Schedule.NextScrapeAt, err = parseTimeString(nextRaw); err != nil {
		return nil, err
	}
	if lastRaw.Valid {
		parsed, err := parseTimeString(lastRaw.String)
		if err != nil {
			return nil, err
		}
		entry.Schedule.LastScrapeAt = &parsed
	}
	if intervalSec.Valid {
		interval := time.Duration(intervalSec.Int64) * time.Second
		entry.Schedule.AvgInterval = &interval
	}
	if entry.Schedule.UpdatedAt, err = parseTimeString(sUpdatedRaw); err != nil {
		return nil, err
	}
	return &entry, nil
}
