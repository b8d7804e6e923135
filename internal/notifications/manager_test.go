package notifications_test

import (
	"context"
	"encoding/json"
	"testing"

	"mangawatch/internal/notifications"
	"mangawatch/internal/source"
	"mangawatch/internal/store"
	"mangawatch/internal/testsupport"
)

func TestCreateNewChapterNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := notifications.NewManager(st)

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Vagrant Blade")
	notification, err := manager.CreateNewChapterNotification(context.Background(), title, source.ChapterRecord{
		ID:    "ch-9",
		Label: "Chapter 9",
	})
	if err != nil {
		t.Fatalf("CreateNewChapterNotification failed: %v", err)
	}
	if notification.Importance != 1 {
		t.Fatalf("importance = %d, want 1", notification.Importance)
	}
	if notification.Delivered {
		t.Fatal("notification must start undelivered")
	}

	var payload notifications.ChapterPayload
	if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TitleName != "Vagrant Blade" || payload.ChapterLabel != "Chapter 9" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateBatchNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := notifications.NewManager(st)

	title := testsupport.MustCreateTitle(t, st, "col-2", "src-2", "Moon Ledger")
	chapters := []source.ChapterRecord{
		{ID: "c1", Label: "Ch 1"},
		{ID: "c2", Label: "Ch 2"},
		{ID: "c3", Label: "Ch 3"},
	}
	notification, err := manager.CreateBatchNotification(context.Background(), title, chapters)
	if err != nil {
		t.Fatalf("CreateBatchNotification failed: %v", err)
	}
	if notification.Importance != 2 {
		t.Fatalf("importance = %d, want 2", notification.Importance)
	}

	var payload notifications.BatchPayload
	if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ChapterCount != 3 || len(payload.ChapterLabels) != 3 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateStatusChangeNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := notifications.NewManager(st)

	title := testsupport.MustCreateTitle(t, st, "col-3", "src-3", "Iron Petal")
	notification, err := manager.CreateStatusChangeNotification(context.Background(), title, store.TitleOngoing, store.TitleCompleted)
	if err != nil {
		t.Fatalf("CreateStatusChangeNotification failed: %v", err)
	}
	if notification.Importance != 3 {
		t.Fatalf("importance = %d, want 3", notification.Importance)
	}

	var payload notifications.StatusChangePayload
	if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OldStatus != "ongoing" || payload.NewStatus != "completed" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}
