package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/store"
)

const userAgent = "mangawatch/0.1"

// Channel is the live delivery surface the relay pushes notifications to.
// Implementations must treat Push as at-least-once: a failed push will be
// retried on a later poll.
type Channel interface {
	Push(ctx context.Context, notification *store.Notification) error
}

// NewChannel builds a delivery channel backed by ntfy when configured. When
// no topic is configured, a noop implementation is returned and notifications
// simply accumulate as delivered rows.
func NewChannel(cfg *config.Config) Channel {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopChannel{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyChannel{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type ntfyChannel struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyChannel) Push(ctx context.Context, notification *store.Notification) error {
	if n == nil || n.client == nil {
		return nil
	}

	title, message, tags := renderNotification(notification)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if notification.Kind == store.KindStatusChange {
		req.Header.Set("Priority", "high")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func renderNotification(notification *store.Notification) (title, message string, tags []string) {
	switch notification.Kind {
	case store.KindNewChapter:
		var payload ChapterPayload
		if err := json.Unmarshal([]byte(notification.Payload), &payload); err == nil {
			title = "New chapter"
			message = fmt.Sprintf("%s: %s", payload.TitleName, payload.ChapterLabel)
			tags = []string{"mangawatch", "chapter"}
			return
		}
	case store.KindChapterBatch:
		var payload BatchPayload
		if err := json.Unmarshal([]byte(notification.Payload), &payload); err == nil {
			title = "New chapters"
			message = fmt.Sprintf("%s: %d new chapters", payload.TitleName, payload.ChapterCount)
			tags = []string{"mangawatch", "chapter", "batch"}
			return
		}
	case store.KindStatusChange:
		var payload StatusChangePayload
		if err := json.Unmarshal([]byte(notification.Payload), &payload); err == nil {
			title = "Status change"
			message = fmt.Sprintf("%s: %s -> %s", payload.TitleName, payload.OldStatus, payload.NewStatus)
			tags = []string{"mangawatch", "status"}
			return
		}
	}
	// Unknown kind or undecodable payload still gets delivered.
	title = "mangawatch"
	message = notification.Payload
	tags = []string{"mangawatch"}
	return
}

type noopChannel struct{}

func (noopChannel) Push(context.Context, *store.Notification) error { return nil }
