package scheduling_test

import (
	"testing"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/pattern"
	"mangawatch/internal/scheduling"
	"mangawatch/internal/store"
)

var now = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *scheduling.Engine {
	t.Helper()
	return scheduling.NewEngineWithClock(config.Default().Scheduling, func() time.Time { return now })
}

func trusted(interval time.Duration, confidence float64) pattern.Result {
	return pattern.Result{
		AvgInterval:     interval,
		IntervalKnown:   true,
		WeekdayDetected: true,
		Confidence:      confidence,
	}
}

func TestDormantTitlesGetDormantCadence(t *testing.T) {
	engine := newEngine(t)
	for _, status := range []store.TitleStatus{store.TitleCompleted, store.TitleDropped} {
		next := engine.ComputeNextScrapeTime(status, trusted(7*24*time.Hour, 0.9))
		// 30 days exceeds the 14-day clamp, so the bound wins.
		if want := now.Add(14 * 24 * time.Hour); !next.Equal(want) {
			t.Fatalf("%s: next = %v, want clamp at %v", status, next, want)
		}
	}
}

func TestTrustedPatternScrapesAhead(t *testing.T) {
	engine := newEngine(t)
	next := engine.ComputeNextScrapeTime(store.TitleOngoing, trusted(5*24*time.Hour, 0.8))
	if want := now.Add(4 * 24 * time.Hour); !next.Equal(want) { // 0.8 × 5d
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestConfidenceThresholdBoundary(t *testing.T) {
	engine := newEngine(t)
	interval := 5 * 24 * time.Hour

	atThreshold := engine.ComputeNextScrapeTime(store.TitleOngoing, trusted(interval, 0.6))
	if want := now.Add(4 * 24 * time.Hour); !atThreshold.Equal(want) {
		t.Fatalf("0.60 confidence should trust the pattern: next = %v, want %v", atThreshold, want)
	}

	below := engine.ComputeNextScrapeTime(store.TitleOngoing, trusted(interval, 0.59))
	if want := now.Add(24 * time.Hour); !below.Equal(want) {
		t.Fatalf("0.59 confidence should fall back to default: next = %v, want %v", below, want)
	}
}

func TestUnknownPatternUsesDefaultCadence(t *testing.T) {
	engine := newEngine(t)
	next := engine.ComputeNextScrapeTime(store.TitleOngoing, pattern.Result{})
	if want := now.Add(24 * time.Hour); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestClampHoldsUnderAdversarialInputs(t *testing.T) {
	engine := newEngine(t)
	min := now.Add(6 * time.Hour)
	max := now.Add(14 * 24 * time.Hour)

	adversarial := []pattern.Result{
		trusted(-48*time.Hour, 1.0),        // negative interval
		trusted(0, 1.0),                    // zero interval
		trusted(2*time.Hour, 1.0),          // below the floor after 0.8×
		trusted(500*24*time.Hour, 1.0),     // far beyond the ceiling
		{Confidence: 0},                    // nothing known at all
		trusted(7*24*time.Hour, -5),        // nonsense confidence
	}
	for i, analysis := range adversarial {
		next := engine.ComputeNextScrapeTime(store.TitleOngoing, analysis)
		if next.Before(min) || next.After(max) {
			t.Fatalf("case %d: next %v escapes bounds [%v, %v]", i, next, min, max)
		}
	}
}

func TestRescheduleMissWidening(t *testing.T) {
	engine := newEngine(t)
	schedule := &store.Schedule{TitleID: 1}

	// First miss: default 24h widened once by 1.5.
	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeNoChange)
	if schedule.MissCount != 1 {
		t.Fatalf("miss count = %d, want 1", schedule.MissCount)
	}
	if want := now.Add(36 * time.Hour); !schedule.NextScrapeAt.Equal(want) {
		t.Fatalf("next after 1 miss = %v, want %v", schedule.NextScrapeAt, want)
	}

	// Second miss widens again: 24h × 1.5².
	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeNoChange)
	if schedule.MissCount != 2 {
		t.Fatalf("miss count = %d, want 2", schedule.MissCount)
	}
	if want := now.Add(54 * time.Hour); !schedule.NextScrapeAt.Equal(want) {
		t.Fatalf("next after 2 misses = %v, want %v", schedule.NextScrapeAt, want)
	}

	// New chapters reset the counter.
	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeNewChapters)
	if schedule.MissCount != 0 {
		t.Fatalf("miss count after hit = %d, want 0", schedule.MissCount)
	}
	if want := now.Add(24 * time.Hour); !schedule.NextScrapeAt.Equal(want) {
		t.Fatalf("next after hit = %v, want %v", schedule.NextScrapeAt, want)
	}
}

func TestRescheduleWideningStaysClamped(t *testing.T) {
	engine := newEngine(t)
	schedule := &store.Schedule{TitleID: 1, MissCount: 50}

	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeNoChange)
	if want := now.Add(14 * 24 * time.Hour); !schedule.NextScrapeAt.Equal(want) {
		t.Fatalf("widened schedule escaped clamp: %v", schedule.NextScrapeAt)
	}
}

func TestRescheduleErrorLeavesMissCount(t *testing.T) {
	engine := newEngine(t)
	schedule := &store.Schedule{TitleID: 1, MissCount: 2}

	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeError)
	if schedule.MissCount != 2 {
		t.Fatalf("error outcome changed miss count: %d", schedule.MissCount)
	}
	if schedule.LastOutcome != store.OutcomeError {
		t.Fatalf("last outcome = %q", schedule.LastOutcome)
	}
	if schedule.LastScrapeAt == nil || !schedule.LastScrapeAt.Equal(now) {
		t.Fatalf("last scrape time not recorded: %v", schedule.LastScrapeAt)
	}
}

func TestRescheduleRecordsAnalysis(t *testing.T) {
	engine := newEngine(t)
	schedule := &store.Schedule{TitleID: 1}

	engine.Reschedule(schedule, store.TitleOngoing, trusted(7*24*time.Hour, 0.85), store.OutcomeNewChapters)
	if schedule.AvgInterval == nil || *schedule.AvgInterval != 7*24*time.Hour {
		t.Fatalf("interval not persisted: %v", schedule.AvgInterval)
	}
	if schedule.Confidence != 0.85 {
		t.Fatalf("confidence = %v", schedule.Confidence)
	}

	engine.Reschedule(schedule, store.TitleOngoing, pattern.Result{}, store.OutcomeNoChange)
	if schedule.AvgInterval != nil {
		t.Fatal("unknown interval should clear the stored value")
	}
}
