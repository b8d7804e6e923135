package scraper

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/logging"
	"mangawatch/internal/notifications"
	"mangawatch/internal/source"
	"mangawatch/internal/store"
	"mangawatch/internal/testsupport"
)

type fakeSource struct {
	mu        sync.Mutex
	lists     map[string]*source.ChapterList
	listErrs  map[string][]error
	meta      map[string]*source.Metadata
	metaErrs  map[string][]error
	listCalls map[string]int
	metaCalls map[string]int

	// listDelay stalls chapter fetches; listStarted signals that a fetch is
	// underway so tests can interleave with it.
	listDelay   time.Duration
	listStarted chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		lists:     make(map[string]*source.ChapterList),
		listErrs:  make(map[string][]error),
		meta:      make(map[string]*source.Metadata),
		metaErrs:  make(map[string][]error),
		listCalls: make(map[string]int),
		metaCalls: make(map[string]int),
	}
}

func (f *fakeSource) FetchChapterList(ctx context.Context, sourceID string) (*source.ChapterList, error) {
	f.mu.Lock()
	f.listCalls[sourceID]++
	var err error
	if errs := f.listErrs[sourceID]; len(errs) > 0 {
		err = errs[0]
		f.listErrs[sourceID] = errs[1:]
	}
	list := f.lists[sourceID]
	delay := f.listDelay
	started := f.listStarted
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, source.Wrap(source.ErrNetwork, "fetch chapters", "connection cut", ctx.Err())
		case <-timer.C:
		}
	}

	if err != nil {
		return nil, err
	}
	if list != nil {
		return list, nil
	}
	return &source.ChapterList{}, nil
}

func (f *fakeSource) FetchMetadata(_ context.Context, sourceID string) (*source.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls[sourceID]++
	if errs := f.metaErrs[sourceID]; len(errs) > 0 {
		err := errs[0]
		f.metaErrs[sourceID] = errs[1:]
		return nil, err
	}
	if meta, ok := f.meta[sourceID]; ok {
		return meta, nil
	}
	return &source.Metadata{Status: "ongoing"}, nil
}

func (f *fakeSource) calls(sourceID string) (lists, metas int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[sourceID], f.metaCalls[sourceID]
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *fakeSource, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Scraper.RetryBaseDelayMS = 1
	cfg.Scraper.RetryMaxDelayMS = 5
	st := testsupport.MustOpenStore(t, cfg)
	fake := newFakeSource()
	return NewOrchestrator(cfg, st, fake, logging.NewNop()), st, fake, cfg
}

func weeklyChapters(n int) []source.ChapterRecord {
	base := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	chapters := make([]source.ChapterRecord, 0, n)
	for i := 0; i < n; i++ {
		chapters = append(chapters, source.ChapterRecord{
			ID:          "ch-" + string(rune('a'+i)),
			Label:       "Chapter " + string(rune('1'+i)),
			PublishedAt: base.Add(time.Duration(i) * 7 * 24 * time.Hour),
		})
	}
	return chapters
}

func TestRunCycleBatchesNewChapters(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Solo Leveling")
	chapters := weeklyChapters(4)
	if _, err := st.InsertChapters(ctx, title.ID, []store.Chapter{{
		SourceChapterID: chapters[0].ID,
		Label:           chapters[0].Label,
		PublishedAt:     chapters[0].PublishedAt,
	}}); err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Solo Leveling", Chapters: chapters}

	o.RunCycle(ctx)

	count, err := st.CountChapters(ctx, title.ID)
	if err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if count != 4 {
		t.Fatalf("chapter count = %d, want 4", count)
	}

	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("notifications = %d, want 1 batch", len(pending))
	}
	if pending[0].Kind != store.KindChapterBatch {
		t.Fatalf("kind = %s, want %s", pending[0].Kind, store.KindChapterBatch)
	}
	if pending[0].Importance != 2 {
		t.Fatalf("importance = %d, want 2", pending[0].Importance)
	}
	var payload notifications.BatchPayload
	if err := json.Unmarshal([]byte(pending[0].Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ChapterCount != 3 {
		t.Fatalf("batched chapters = %d, want 3", payload.ChapterCount)
	}

	schedule, err := st.GetSchedule(ctx, title.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.LastOutcome != store.OutcomeNewChapters {
		t.Fatalf("last outcome = %s, want %s", schedule.LastOutcome, store.OutcomeNewChapters)
	}
	if schedule.MissCount != 0 {
		t.Fatalf("miss count = %d, want 0", schedule.MissCount)
	}
	if !schedule.NextScrapeAt.After(time.Now().Add(5 * time.Hour)) {
		t.Fatalf("next scrape %v not pushed past the minimum interval", schedule.NextScrapeAt)
	}

	stats, err := st.ScrapeStatsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("scrape stats: %v", err)
	}
	if stats.Attempts != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want one clean attempt", stats)
	}

	summary := o.LastCycle()
	if summary.Processed != 1 || summary.NewChapters != 3 || summary.Errors != 0 {
		t.Fatalf("cycle summary = %+v", summary)
	}
}

func TestRunCycleSingleChapterNotification(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(1)}

	o.RunCycle(ctx)

	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("notifications = %d, want 1", len(pending))
	}
	if pending[0].Kind != store.KindNewChapter {
		t.Fatalf("kind = %s, want %s", pending[0].Kind, store.KindNewChapter)
	}
	if pending[0].Importance != 1 {
		t.Fatalf("importance = %d, want 1", pending[0].Importance)
	}
}

func TestRunCycleNoChangeIncrementsMissCount(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	chapters := weeklyChapters(2)
	rows := make([]store.Chapter, 0, len(chapters))
	for _, c := range chapters {
		rows = append(rows, store.Chapter{SourceChapterID: c.ID, Label: c.Label, PublishedAt: c.PublishedAt})
	}
	if _, err := st.InsertChapters(ctx, title.ID, rows); err != nil {
		t.Fatalf("seed chapters: %v", err)
	}
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: chapters}

	o.RunCycle(ctx)

	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("notifications = %d, want none on a no-change scrape", len(pending))
	}

	schedule, err := st.GetSchedule(ctx, title.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.LastOutcome != store.OutcomeNoChange {
		t.Fatalf("last outcome = %s, want %s", schedule.LastOutcome, store.OutcomeNoChange)
	}
	if schedule.MissCount != 1 {
		t.Fatalf("miss count = %d, want 1", schedule.MissCount)
	}
}

func TestRunCycleRateLimitAbortsAndCoolsDown(t *testing.T) {
	o, st, fake, cfg := newTestOrchestrator(t)
	ctx := context.Background()

	a := testsupport.MustCreateTitle(t, st, "col-a", "src-a", "Title A")
	testsupport.MustCreateTitle(t, st, "col-b", "src-b", "Title B")
	testsupport.MustCreateTitle(t, st, "col-c", "src-c", "Title C")
	fake.metaErrs["src-a"] = []error{source.Wrap(source.ErrRateLimited, "fetch metadata", "status 429", nil)}

	o.RunCycle(ctx)

	if !o.Cooldown().Active() {
		t.Fatal("cooldown should be active after an upstream rate limit")
	}
	if got := o.Cooldown().Remaining(); got > time.Duration(cfg.Scraper.CooldownSeconds)*time.Second {
		t.Fatalf("cooldown remaining %v exceeds configured window", got)
	}

	// Titles are processed in schedule order; A trips the limiter first and
	// the others are never touched in the same cycle.
	if listsB, metasB := fake.calls("src-b"); listsB != 0 || metasB != 0 {
		t.Fatalf("src-b contacted during cooldown: lists=%d metas=%d", listsB, metasB)
	}
	if listsC, metasC := fake.calls("src-c"); listsC != 0 || metasC != 0 {
		t.Fatalf("src-c contacted during cooldown: lists=%d metas=%d", listsC, metasC)
	}

	// A rate-limit response is not retried locally.
	if _, metasA := fake.calls("src-a"); metasA != 1 {
		t.Fatalf("src-a metadata calls = %d, want 1", metasA)
	}

	failures, err := st.RecentFailures(ctx, 10)
	if err != nil {
		t.Fatalf("recent failures: %v", err)
	}
	if len(failures) != 1 || failures[0].Outcome != store.OutcomeRateLimited {
		t.Fatalf("failures = %+v, want one rate_limited entry", failures)
	}

	// The schedule is deliberately left untouched so the title is retried
	// once the cooldown expires.
	schedule, err := st.GetSchedule(ctx, a.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.NextScrapeAt.After(time.Now()) {
		t.Fatalf("rate-limited title rescheduled to %v, want still due", schedule.NextScrapeAt)
	}

	// The next cycle is skipped entirely while the cooldown is in force.
	o.RunCycle(ctx)
	if listsA, _ := fake.calls("src-a"); listsA != 0 {
		t.Fatalf("src-a chapter list fetched during cooldown: %d", listsA)
	}
}

func TestRunCycleRetriesTransientErrors(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.listErrs["src-1"] = []error{
		source.Wrap(source.ErrNetwork, "fetch chapters", "status 502", nil),
		source.Wrap(source.ErrNetwork, "fetch chapters", "status 502", nil),
	}
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(1)}

	o.RunCycle(ctx)

	if lists, _ := fake.calls("src-1"); lists != 3 {
		t.Fatalf("chapter list calls = %d, want 3 (two retries)", lists)
	}
	summary := o.LastCycle()
	if summary.NewChapters != 1 || summary.Errors != 0 {
		t.Fatalf("cycle summary = %+v, want recovery after retries", summary)
	}
}

func TestRunCycleMalformedResponseNotRetried(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.listErrs["src-1"] = []error{
		source.Wrap(source.ErrMalformed, "fetch chapters", "unexpected markup", nil),
	}

	o.RunCycle(ctx)

	if lists, _ := fake.calls("src-1"); lists != 1 {
		t.Fatalf("chapter list calls = %d, want 1 (no retry)", lists)
	}

	schedule, err := st.GetSchedule(ctx, title.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.LastOutcome != store.OutcomeError {
		t.Fatalf("last outcome = %s, want %s", schedule.LastOutcome, store.OutcomeError)
	}
	if !schedule.NextScrapeAt.After(time.Now()) {
		t.Fatal("failing title should still be pushed into the future")
	}

	failures, err := st.RecentFailures(ctx, 10)
	if err != nil {
		t.Fatalf("recent failures: %v", err)
	}
	if len(failures) != 1 || failures[0].ErrorMessage == "" {
		t.Fatalf("failures = %+v, want one entry with a message", failures)
	}
}

func TestRunCycleStatusChange(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.meta["src-1"] = &source.Metadata{Name: "Berserk", Status: "completed"}
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(1)}

	o.RunCycle(ctx)

	updated, err := st.GetTitle(ctx, title.ID)
	if err != nil {
		t.Fatalf("get title: %v", err)
	}
	if updated.Status != store.TitleCompleted {
		t.Fatalf("status = %s, want %s", updated.Status, store.TitleCompleted)
	}

	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("notifications = %d, want status change plus chapter", len(pending))
	}
	// Undelivered ordering is importance first; the status change outranks
	// the chapter.
	if pending[0].Kind != store.KindStatusChange || pending[0].Importance != 3 {
		t.Fatalf("first pending = %s/%d, want status_change/3", pending[0].Kind, pending[0].Importance)
	}
	if pending[1].Kind != store.KindNewChapter {
		t.Fatalf("second pending = %s, want new_chapter", pending[1].Kind)
	}
}

func TestRunCycleAdoptsUpstreamName(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Placeholder")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "solo_leveling", Chapters: weeklyChapters(1)}

	o.RunCycle(ctx)

	updated, err := st.GetTitle(ctx, title.ID)
	if err != nil {
		t.Fatalf("get title: %v", err)
	}
	if updated.Name != "Solo Leveling" {
		t.Fatalf("name = %q, want normalized upstream name", updated.Name)
	}

	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("notifications = %d, want 1", len(pending))
	}
	var payload notifications.ChapterPayload
	if err := json.Unmarshal([]byte(pending[0].Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TitleName != "Solo Leveling" {
		t.Fatalf("payload title = %q, want the adopted name", payload.TitleName)
	}
}

func TestScrapeTitleManualTrigger(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(2)}

	result, err := o.ScrapeTitle(ctx, title.ID)
	if err != nil {
		t.Fatalf("scrape title: %v", err)
	}
	if result.Outcome != store.OutcomeNewChapters || result.NewChapters != 2 {
		t.Fatalf("result = %+v, want 2 new chapters", result)
	}

	if _, err := o.ScrapeTitle(ctx, title.ID+99); err == nil {
		t.Fatal("expected error for unknown title")
	}

	o.Cooldown().Set(time.Minute)
	if _, err := o.ScrapeTitle(ctx, title.ID); err == nil {
		t.Fatal("manual trigger should respect the cooldown")
	}
}

func TestRunCycleRescrapeIsIdempotent(t *testing.T) {
	o, st, fake, _ := newTestOrchestrator(t)
	ctx := context.Background()

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(3)}

	o.RunCycle(ctx)
	// Force the title due again with identical upstream content.
	schedule, err := st.GetSchedule(ctx, title.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	schedule.NextScrapeAt = time.Now().Add(-time.Minute)
	if err := st.SaveSchedule(ctx, schedule); err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	o.RunCycle(ctx)

	count, err := st.CountChapters(ctx, title.ID)
	if err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if count != 3 {
		t.Fatalf("chapter count = %d after re-scrape, want 3", count)
	}
	pending, err := st.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("notifications = %d, want only the first discovery", len(pending))
	}
}

func TestStartStop(t *testing.T) {
	o, st, fake, cfg := newTestOrchestrator(t)
	cfg.Scraper.CycleInterval = 3600

	testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(1)}

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if o.LastCycle().Processed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cycle did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	o.Stop()
	o.Stop()
}

func TestStopLetsInflightTitleFinish(t *testing.T) {
	o, st, fake, cfg := newTestOrchestrator(t)
	cfg.Scraper.CycleInterval = 3600
	cfg.Scraper.ShutdownGraceSeconds = 5

	title := testsupport.MustCreateTitle(t, st, "col-1", "src-1", "Berserk")
	fake.lists["src-1"] = &source.ChapterList{TitleName: "Berserk", Chapters: weeklyChapters(4)}
	fake.listDelay = 300 * time.Millisecond
	fake.listStarted = make(chan struct{}, 1)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-fake.listStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("chapter fetch never started")
	}
	// Stop lands while the chapter fetch is stalled; the grace period must
	// let the title run its pipeline to completion before the loop exits.
	o.Stop()

	ctx := context.Background()
	count, err := st.CountChapters(ctx, title.ID)
	if err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if count != 4 {
		t.Fatalf("chapter count = %d after shutdown, want 4", count)
	}

	schedule, err := st.GetSchedule(ctx, title.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if schedule.LastOutcome != store.OutcomeNewChapters {
		t.Fatalf("last outcome = %s, want %s", schedule.LastOutcome, store.OutcomeNewChapters)
	}
	if !schedule.NextScrapeAt.After(time.Now()) {
		t.Fatalf("schedule not advanced past shutdown, next scrape %v", schedule.NextScrapeAt)
	}

	stats, err := st.ScrapeStatsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("scrape stats: %v", err)
	}
	if stats.Attempts != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want one clean logged attempt", stats)
	}
}
