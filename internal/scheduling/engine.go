// Package scheduling turns a title's state into its next scrape time. It is
// the sole writer of schedule rows and enforces the hard interval bounds that
// keep the scraper both polite and current regardless of what the pattern
// analysis claims.
package scheduling

import (
	"math"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/pattern"
	"mangawatch/internal/store"
)

// Engine computes next-scrape times from lifecycle status, inferred cadence,
// and scrape outcomes.
type Engine struct {
	cfg   config.Scheduling
	clock func() time.Time
}

// NewEngine builds an engine using the supplied thresholds.
func NewEngine(cfg config.Scheduling) *Engine {
	return &Engine{cfg: cfg, clock: time.Now}
}

// NewEngineWithClock builds an engine with a fixed clock for tests.
func NewEngineWithClock(cfg config.Scheduling, clock func() time.Time) *Engine {
	return &Engine{cfg: cfg, clock: clock}
}

// ComputeNextScrapeTime picks the next scrape instant for a title:
//
//   - dormant titles (completed or dropped) drop to the dormant cadence
//   - a trusted pattern scrapes slightly ahead of the predicted release
//   - everything else uses the default cadence until history accumulates
//
// The result is always clamped to [now+min, now+max]; the clamp holds even
// for adversarial inputs such as negative or enormous inferred intervals.
func (e *Engine) ComputeNextScrapeTime(status store.TitleStatus, analysis pattern.Result) time.Time {
	now := e.clock()

	var next time.Time
	switch {
	case status.Dormant():
		next = now.Add(time.Duration(e.cfg.DormantDays) * 24 * time.Hour)
	case analysis.Confidence >= e.cfg.ConfidenceThreshold && analysis.IntervalKnown:
		ahead := time.Duration(float64(analysis.AvgInterval) * e.cfg.AheadFactor)
		next = now.Add(ahead)
	default:
		next = now.Add(time.Duration(e.cfg.DefaultHours) * time.Hour)
	}

	return e.clamp(now, next)
}

// Reschedule updates a schedule row after one scrape attempt. The consecutive
// miss counter widens the interval multiplicatively for titles that reliably
// produce nothing; any new chapter resets it. Errors and rate limits leave
// the miss counter untouched so a flaky upstream does not look like a stale
// title.
func (e *Engine) Reschedule(schedule *store.Schedule, status store.TitleStatus, analysis pattern.Result, outcome store.ScrapeOutcome) {
	now := e.clock()

	schedule.LastScrapeAt = &now
	schedule.LastOutcome = outcome

	if analysis.IntervalKnown {
		interval := analysis.AvgInterval
		schedule.AvgInterval = &interval
	} else {
		schedule.AvgInterval = nil
	}
	schedule.Confidence = analysis.Confidence

	switch outcome {
	case store.OutcomeNewChapters:
		schedule.MissCount = 0
	case store.OutcomeNoChange:
		schedule.MissCount++
	}

	next := e.ComputeNextScrapeTime(status, analysis)
	if schedule.MissCount > 0 {
		widen := math.Pow(e.cfg.MissWidenFactor, float64(schedule.MissCount))
		delta := time.Duration(float64(next.Sub(now)) * widen)
		next = e.clamp(now, now.Add(delta))
	}
	schedule.NextScrapeAt = next
}

func (e *Engine) clamp(now, next time.Time) time.Time {
	min := now.Add(time.Duration(e.cfg.MinIntervalHours) * time.Hour)
	max := now.Add(time.Duration(e.cfg.MaxIntervalDays) * 24 * time.Hour)
	if next.Before(min) {
		return min
	}
	if next.After(max) {
		return max
	}
	return next
}
