package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"mangawatch/internal/source"
	"mangawatch/internal/store"
)

// Manager creates persisted notification records for detected events. It is
// the only component that creates notification rows; chapter-level dedup
// happens upstream in the comparator, so the manager assumes every call
// describes a genuinely new event.
type Manager struct {
	store *store.Store
}

// NewManager builds a notification manager over the given store.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st}
}

// ChapterPayload is the payload shape for single-chapter notifications.
type ChapterPayload struct {
	TitleName    string `json:"title_name"`
	ChapterID    string `json:"chapter_id"`
	ChapterLabel string `json:"chapter_label"`
}

// BatchPayload is the payload shape for grouped-chapter notifications.
type BatchPayload struct {
	TitleName     string   `json:"title_name"`
	ChapterCount  int      `json:"chapter_count"`
	ChapterLabels []string `json:"chapter_labels"`
}

// StatusChangePayload is the payload shape for lifecycle transitions.
type StatusChangePayload struct {
	TitleName string `json:"title_name"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// CreateNewChapterNotification records one new chapter (importance 1).
func (m *Manager) CreateNewChapterNotification(ctx context.Context, title *store.Title, chapter source.ChapterRecord) (*store.Notification, error) {
	payload, err := json.Marshal(ChapterPayload{
		TitleName:    title.Name,
		ChapterID:    chapter.ID,
		ChapterLabel: chapter.Label,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chapter payload: %w", err)
	}
	return m.create(ctx, title.ID, store.KindNewChapter, payload)
}

// CreateBatchNotification records one grouped notification for several
// simultaneously discovered chapters (importance 2). Callers invoke this only
// when the comparator's batch threshold is met.
func (m *Manager) CreateBatchNotification(ctx context.Context, title *store.Title, chapters []source.ChapterRecord) (*store.Notification, error) {
	labels := make([]string, 0, len(chapters))
	for _, chapter := range chapters {
		labels = append(labels, chapter.Label)
	}
	payload, err := json.Marshal(BatchPayload{
		TitleName:     title.Name,
		ChapterCount:  len(chapters),
		ChapterLabels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("encode batch payload: %w", err)
	}
	return m.create(ctx, title.ID, store.KindChapterBatch, payload)
}

// CreateStatusChangeNotification records a lifecycle transition (importance
// 3, the highest: status changes are rarer and more consequential than new
// chapters).
func (m *Manager) CreateStatusChangeNotification(ctx context.Context, title *store.Title, oldStatus, newStatus store.TitleStatus) (*store.Notification, error) {
	payload, err := json.Marshal(StatusChangePayload{
		TitleName: title.Name,
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
	})
	if err != nil {
		return nil, fmt.Errorf("encode status payload: %w", err)
	}
	return m.create(ctx, title.ID, store.KindStatusChange, payload)
}

func (m *Manager) create(ctx context.Context, titleID int64, kind store.NotificationKind, payload []byte) (*store.Notification, error) {
	notification := &store.Notification{
		TitleID: titleID,
		Kind:    kind,
		Payload: string(payload),
	}
	if err := m.store.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}
