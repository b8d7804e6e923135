package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"mangawatch/internal/config"
)

// Client reads chapter listings and title metadata from the upstream site.
// It performs no retries; classifying failures and deciding what to do about
// them is the orchestrator's job.
type Client struct {
	baseURL     string
	userAgent   string
	maxChapters int
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient builds a source client from configuration.
func NewClient(cfg *config.Config) *Client {
	perMinute := cfg.Source.RequestsPerMin
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := cfg.Source.RequestBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:     cfg.Source.BaseURL,
		userAgent:   cfg.Source.UserAgent,
		maxChapters: cfg.Source.MaxChapterList,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Source.RequestTimeout) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

// FetchChapterList retrieves the full chapter listing for one title. The list
// preserves upstream order and is capped at max_chapter_list entries.
func (c *Client) FetchChapterList(ctx context.Context, sourceID string) (*ChapterList, error) {
	doc, err := c.get(ctx, fmt.Sprintf("%s/title/%s", c.baseURL, sourceID))
	if err != nil {
		return nil, err
	}

	titleName := strings.TrimSpace(doc.Find("h1.title-name").First().Text())

	container := doc.Find(".chapter-list")
	if container.Length() == 0 {
		return nil, Wrap(ErrMalformed, "fetch chapter list", "chapter list container missing", nil)
	}

	result := &ChapterList{TitleName: titleName}
	container.Find(".chapter-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(result.Chapters) >= c.maxChapters {
			return false
		}
		record, ok := parseChapterItem(sel)
		if !ok {
			// Rows without a chapter id cannot be deduplicated; skip them
			// rather than failing the whole listing.
			return true
		}
		result.Chapters = append(result.Chapters, record)
		return true
	})

	return result, nil
}

// FetchMetadata retrieves title name and lifecycle status.
func (c *Client) FetchMetadata(ctx context.Context, sourceID string) (*Metadata, error) {
	doc, err := c.get(ctx, fmt.Sprintf("%s/title/%s", c.baseURL, sourceID))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find("h1.title-name").First().Text())
	if name == "" {
		return nil, Wrap(ErrMalformed, "fetch metadata", "title name missing", nil)
	}
	status := strings.TrimSpace(doc.Find(".title-status").First().Text())

	return &Metadata{Name: name, Status: status}, nil
}

func (c *Client) get(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, Wrap(ErrNetwork, "rate limiter", "wait cancelled", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Wrap(ErrMalformed, "build request", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Wrap(ErrNetwork, "fetch", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, Wrap(ErrRateLimited, "fetch", fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return nil, Wrap(ErrNetwork, "fetch", fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, Wrap(ErrMalformed, "fetch", fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, Wrap(ErrMalformed, "parse", url, err)
	}
	return doc, nil
}

func parseChapterItem(sel *goquery.Selection) (ChapterRecord, bool) {
	id, ok := sel.Attr("data-chapter-id")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return ChapterRecord{}, false
	}

	record := ChapterRecord{
		ID:    id,
		Label: strings.TrimSpace(sel.Find(".chapter-label").First().Text()),
	}
	if record.Label == "" {
		record.Label = id
	}

	if datetime, ok := sel.Find("time").First().Attr("datetime"); ok {
		if published, err := time.Parse(time.RFC3339, strings.TrimSpace(datetime)); err == nil {
			record.PublishedAt = published.UTC()
		}
	}

	viewsText := strings.TrimSpace(sel.Find(".chapter-views").First().Text())
	if viewsText != "" {
		if views, err := strconv.ParseInt(strings.ReplaceAll(viewsText, ",", ""), 10, 64); err == nil {
			record.Views = views
		}
	}

	return record, true
}
