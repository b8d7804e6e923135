package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendScrapeLog records one scrape attempt. Exactly one entry is written per
// attempt, whatever the outcome.
func (s *Store) AppendScrapeLog(ctx context.Context, entry *ScrapeLogEntry) error {
	if entry == nil {
		return errors.New("scrape log entry is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (title_id, run_id, started_at, finished_at, duration_ms, outcome, chapters_found, new_chapters, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TitleID,
		entry.RunID,
		formatTime(entry.StartedAt),
		formatTime(entry.FinishedAt),
		entry.Duration.Milliseconds(),
		entry.Outcome,
		entry.ChaptersFound,
		entry.NewChapters,
		nullableString(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("append scrape log: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scrape log insert id: %w", err)
	}
	return nil
}

// ScrapeStatsSince aggregates attempts, error rate, and average duration for
// entries started at or after the cutoff.
func (s *Store) ScrapeStatsSince(ctx context.Context, cutoff time.Time) (*ScrapeStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
                COALESCE(AVG(duration_ms), 0)
         FROM scrape_log WHERE started_at >= ?`,
		OutcomeError, OutcomeRateLimited, formatTime(cutoff))

	var (
		stats ScrapeStats
		avgMS float64
	)
	if err := row.Scan(&stats.Attempts, &stats.Errors, &stats.RateLimited, &avgMS); err != nil {
		return nil, fmt.Errorf("scan scrape stats: %w", err)
	}
	if stats.Attempts > 0 {
		stats.ErrorRate = float64(stats.Errors+stats.RateLimited) / float64(stats.Attempts)
	}
	stats.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
	return &stats, nil
}

// RecentFailures returns the newest failed attempts for the admin surface.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]*ScrapeLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title_id, run_id, started_at, finished_at, duration_ms, outcome, chapters_found, new_chapters, error_message
         FROM scrape_log
         WHERE outcome IN (?, ?)
         ORDER BY started_at DESC
         LIMIT ?`,
		OutcomeError, OutcomeRateLimited, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent failures: %w", err)
	}
	defer rows.Close()

	var entries []*ScrapeLogEntry
	for rows.Next() {
		entry, err := scanScrapeLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanScrapeLogEntry(scanner interface{ Scan(dest ...any) error }) (*ScrapeLogEntry, error) {
	var (
		entry       ScrapeLogEntry
		startedRaw  string
		finishedRaw string
		durationMS  int64
		outcomeStr  string
		errMessage  sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.TitleID,
		&entry.RunID,
		&startedRaw,
		&finishedRaw,
		&durationMS,
		&outcomeStr,
		&entry.ChaptersFound,
		&entry.NewChapters,
		&errMessage,
	); err != nil {
		return nil, fmt.Errorf("scan scrape log entry: %w", err)
	}

	var err error
	if entry.StartedAt, err = parseTimeString(startedRaw); err != nil {
		return nil, err
	}
	if entry.FinishedAt, err = parseTimeString(finishedRaw); err != nil {
		return nil, err
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.Outcome = ScrapeOutcome(outcomeStr)
	entry.ErrorMessage = errMessage.String
	return &entry, nil
}
