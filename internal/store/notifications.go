package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const notificationColumns = "id, title_id, kind, importance, payload, created_at, read, delivered"

// CreateNotification persists a notification with delivered=false. The caller
// (the notification manager) owns creation; importance is derived from the
// kind when unset.
func (s *Store) CreateNotification(ctx context.Context, notification *Notification) error {
	if notification == nil {
		return errors.New("notification is required")
	}
	if notification.Kind == "" {
		return errors.New("notification kind is required")
	}
	if notification.Importance == 0 {
		notification.Importance = notification.Kind.Importance()
	}
	notification.CreatedAt = time.Now().UTC()
	notification.Delivered = false

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (title_id, kind, importance, payload, created_at, read, delivered)
         VALUES (?, ?, ?, ?, ?, ?, 0)`,
		notification.TitleID,
		notification.Kind,
		notification.Importance,
		notification.Payload,
		formatTime(notification.CreatedAt),
		boolToInt(notification.Read),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	notification.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("notification insert id: %w", err)
	}
	return nil
}

// ListUndelivered returns pending notifications, most important first and
// oldest first within the same importance. This is the relay's work queue.
func (s *Store) ListUndelivered(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+notificationColumns+` FROM notifications
         WHERE delivered = 0
         ORDER BY importance DESC, created_at
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query undelivered notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// MarkDelivered flips the delivered flag and reports whether this call was the
// one that flipped it. The guard clause makes the transition happen at most
// once even when two relay polls race on the same row.
func (s *Store) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET delivered = 1 WHERE id = ? AND delivered = 0", id)
	if err != nil {
		return false, fmt.Errorf("mark notification delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delivered rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkRead records that the user has seen a notification. Independent of the
// delivered transition.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d not found", id)
	}
	return nil
}

// ListRecentNotifications returns the newest notifications regardless of
// state, for the admin surface.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+notificationColumns+` FROM notifications
         ORDER BY created_at DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]*Notification, error) {
	var notifications []*Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*Notification, error) {
	var (
		notification Notification
		kindStr      string
		createdRaw   string
		readInt      int
		deliveredInt int
	)
	if err := scanner.Scan(
		&notification.ID,
		&notification.TitleID,
		&kindStr,
		&notification.Importance,
		&notification.Payload,
		&createdRaw,
		&readInt,
		&deliveredInt,
	); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	notification.Kind = NotificationKind(kindStr)
	var err error
	if notification.CreatedAt, err = parseTimeString(createdRaw); err != nil {
		return nil, err
	}
	notification.Read = readInt != 0
	notification.Delivered = deliveredInt != 0
	return &notification, nil
}
