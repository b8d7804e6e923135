package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const titleColumns = "id, collection_id, source_id, name, status, created_at, updated_at"

// CreateTitle registers a collection entry for monitoring. The schedule row is
// created in the same transaction with the supplied first scrape time, so a
// title is never observable without one.
func (s *Store) CreateTitle(ctx context.Context, collectionID, sourceID, name string, firstScrapeAt time.Time) (*Title, error) {
	collectionID = strings.TrimSpace(collectionID)
	sourceID = strings.TrimSpace(sourceID)
	name = strings.TrimSpace(name)
	if collectionID == "" {
		return nil, errors.New("collection id is required")
	}
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}

	now := time.Now().UTC()
	timestamp := formatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create title tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO titles (collection_id, source_id, name, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		collectionID, sourceID, name, TitleUnknown, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert title: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("title insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (title_id, next_scrape_at, last_outcome, confidence, miss_count, updated_at)
         VALUES (?, ?, ?, 0, 0, ?)`,
		id, formatTime(firstScrapeAt), OutcomeNone, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create title: %w", err)
	}

	return &Title{
		ID:           id,
		CollectionID: collectionID,
		SourceID:     sourceID,
		Name:         name,
		Status:       TitleUnknown,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetTitle returns the title with the given id, or nil when absent.
func (s *Store) GetTitle(ctx context.Context, id int64) (*Title, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+titleColumns+" FROM titles WHERE id = ?", id)
	title, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return title, err
}

// GetTitleByCollectionID returns the title linked to a collection entry, or nil.
func (s *Store) GetTitleByCollectionID(ctx context.Context, collectionID string) (*Title, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+titleColumns+" FROM titles WHERE collection_id = ?", collectionID)
	title, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return title, err
}

// ListTitles returns all tracked titles ordered by name.
func (s *Store) ListTitles(ctx context.Context) ([]*Title, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+titleColumns+" FROM titles ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var titles []*Title
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// RenameTitle replaces a title's display name, typically after the upstream
// page reports a different canonical name than the one entered at add time.
func (s *Store) RenameTitle(ctx context.Context, id int64, name string) error {
	if name == "" {
		return fmt.Errorf("title name must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE titles SET name = ?, updated_at = ? WHERE id = ?",
		name, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("rename title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename title rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("title %d not found", id)
	}
	return nil
}

// SetTitleStatus records a lifecycle status change from upstream.
func (s *Store) SetTitleStatus(ctx context.Context, id int64, status TitleStatus) error {
	if _, ok := titleStatusSet[status]; !ok {
		return fmt.Errorf("invalid title status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE titles SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update title status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("title status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("title %d not found", id)
	}
	return nil
}

func scanTitle(scanner interface{ Scan(dest ...any) error }) (*Title, error) {
	var (
		title      Title
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&title.ID,
		&title.CollectionID,
		&title.SourceID,
		&title.Name,
		&statusStr,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan title: %w", err)
	}

	title.Status = ParseTitleStatus(statusStr)

	var err error
	if title.CreatedAt, err = parseTimeString(createdRaw); err != nil {
		return nil, err
	}
	if title.UpdatedAt, err = parseTimeString(updatedRaw); err != nil {
		return nil, err
	}
	return &title, nil
}
