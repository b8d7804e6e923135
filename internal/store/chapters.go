package store

import (
	"context"
	"fmt"
	"time"
)

// InsertChapters bulk-inserts chapters for a title, silently skipping rows
// whose (title_id, source_chapter_id) pair already exists. Returns the number
// of rows actually inserted. Duplicates are expected during re-scrapes after a
// partial failure, not errors.
func (s *Store) InsertChapters(ctx context.Context, titleID int64, chapters []Chapter) (int, error) {
	if len(chapters) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert chapters tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chapters (title_id, source_chapter_id, label, published_at, views, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (title_id, source_chapter_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert chapter: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	inserted := 0
	for _, chapter := range chapters {
		if chapter.SourceChapterID == "" {
			return 0, fmt.Errorf("chapter for title %d missing source chapter id", titleID)
		}
		res, err := stmt.ExecContext(ctx,
			titleID,
			chapter.SourceChapterID,
			chapter.Label,
			formatTime(chapter.PublishedAt),
			chapter.Views,
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert chapter %q: %w", chapter.SourceChapterID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("chapter rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert chapters: %w", err)
	}
	return inserted, nil
}

// KnownChapterIDs returns the set of source chapter ids already persisted for
// a title. The comparator diffs fresh scrapes against this set.
func (s *Store) KnownChapterIDs(ctx context.Context, titleID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source_chapter_id FROM chapters WHERE title_id = ?", titleID)
	if err != nil {
		return nil, fmt.Errorf("query known chapters: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chapter id: %w", err)
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// ChapterTimestamps returns the publish times for a title in ascending order,
// feeding the pattern analyzer.
func (s *Store) ChapterTimestamps(ctx context.Context, titleID int64) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT published_at FROM chapters WHERE title_id = ? ORDER BY published_at", titleID)
	if err != nil {
		return nil, fmt.Errorf("query chapter timestamps: %w", err)
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan chapter timestamp: %w", err)
		}
		parsed, err := parseTimeString(raw)
		if err != nil {
			return nil, err
		}
		stamps = append(stamps, parsed)
	}
	return stamps, rows.Err()
}

// CountChapters returns the number of chapters observed for a title.
func (s *Store) CountChapters(ctx context.Context, titleID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM chapters WHERE title_id = ?", titleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chapters: %w", err)
	}
	return count, nil
}
