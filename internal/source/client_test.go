package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mangawatch/internal/source"
	"mangawatch/internal/testsupport"
)

const titlePage = `<!DOCTYPE html>
<html><body>
<h1 class="title-name">Vagrant Blade</h1>
<div class="title-status">Ongoing</div>
<div class="chapter-list">
  <div class="chapter-item" data-chapter-id="ch-103">
    <span class="chapter-label">Chapter 103</span>
    <time datetime="2026-08-21T12:00:00Z"></time>
    <span class="chapter-views">12,405</span>
  </div>
  <div class="chapter-item" data-chapter-id="ch-102">
    <span class="chapter-label">Chapter 102</span>
    <time datetime="2026-08-14T12:00:00Z"></time>
    <span class="chapter-views">15,991</span>
  </div>
  <div class="chapter-item">
    <span class="chapter-label">broken row without id</span>
  </div>
</div>
</body></html>`

func newClient(t *testing.T, handler http.Handler) *source.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithSourceURL(server.URL))
	cfg.Source.RequestsPerMin = 6000
	return source.NewClient(cfg)
}

func TestFetchChapterList(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/title/src-1" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, titlePage)
	}))

	list, err := client.FetchChapterList(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("FetchChapterList failed: %v", err)
	}
	if list.TitleName != "Vagrant Blade" {
		t.Fatalf("title name = %q", list.TitleName)
	}
	if len(list.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2 (row without id skipped)", len(list.Chapters))
	}
	// Upstream order preserved.
	if list.Chapters[0].ID != "ch-103" || list.Chapters[1].ID != "ch-102" {
		t.Fatalf("order not preserved: %#v", list.Chapters)
	}
	if list.Chapters[0].Views != 12405 {
		t.Fatalf("views = %d", list.Chapters[0].Views)
	}
	if list.Chapters[0].PublishedAt.IsZero() {
		t.Fatal("published timestamp not parsed")
	}
}

func TestFetchChapterListCapsSize(t *testing.T) {
	var page strings.Builder
	page.WriteString(`<html><body><h1 class="title-name">Big</h1><div class="chapter-list">`)
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&page, `<div class="chapter-item" data-chapter-id="ch-%d"></div>`, i)
	}
	page.WriteString(`</div></body></html>`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page.String())
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithSourceURL(server.URL))
	cfg.Source.MaxChapterList = 10
	cfg.Source.RequestsPerMin = 6000

	list, err := source.NewClient(cfg).FetchChapterList(context.Background(), "x")
	if err != nil {
		t.Fatalf("FetchChapterList failed: %v", err)
	}
	if len(list.Chapters) != 10 {
		t.Fatalf("chapters = %d, want capped at 10", len(list.Chapters))
	}
}

func TestFetchClassifiesRateLimit(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchChapterList(context.Background(), "src-1")
	if !errors.Is(err, source.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchClassifiesServerErrorAsNetwork(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.FetchChapterList(context.Background(), "src-1")
	if !errors.Is(err, source.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !source.Transient(err) {
		t.Fatal("network failures should be transient")
	}
}

func TestFetchClassifiesMissingListAsMalformed(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1 class="title-name">No Chapters Here</h1></body></html>`)
	}))

	_, err := client.FetchChapterList(context.Background(), "src-1")
	if !errors.Is(err, source.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if source.Transient(err) {
		t.Fatal("malformed responses must not be retried as transient")
	}
}

func TestFetchMetadata(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, titlePage)
	}))

	meta, err := client.FetchMetadata(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if meta.Name != "Vagrant Blade" || meta.Status != "Ongoing" {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
}
