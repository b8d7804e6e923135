package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangawatch/internal/config"
	"mangawatch/internal/logging"
	"mangawatch/internal/notifications"
	"mangawatch/internal/retry"
	"mangawatch/internal/scheduling"
	"mangawatch/internal/source"
	"mangawatch/internal/store"
)

// SourceClient is the read surface the orchestrator drives against the
// upstream site.
type SourceClient interface {
	FetchChapterList(ctx context.Context, sourceID string) (*source.ChapterList, error)
	FetchMetadata(ctx context.Context, sourceID string) (*source.Metadata, error)
}

// CycleSummary describes the most recent scrape cycle for the admin surface.
type CycleSummary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Due         int
	Processed   int
	NewChapters int
	Errors      int
}

// Orchestrator runs the background scraping loop: select due titles, process
// them strictly sequentially with a randomized politeness delay in between,
// and persist the results. Titles are independent units of work; one title's
// failure never stops the cycle, but an upstream rate-limit signal does.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	client   SourceClient
	engine   *scheduling.Engine
	manager  *notifications.Manager
	logger   *slog.Logger
	cooldown *Cooldown
	policy   retry.Policy

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastCycle CycleSummary
}

// NewOrchestrator constructs the scraping loop with its dependencies.
func NewOrchestrator(cfg *config.Config, st *store.Store, client SourceClient, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		client:   client,
		engine:   scheduling.NewEngine(cfg.Scheduling),
		manager:  notifications.NewManager(st),
		logger:   logging.NewComponentLogger(logger, "scraper"),
		cooldown: NewCooldown(),
		policy: retry.Policy{
			MaxAttempts: cfg.Scraper.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Scraper.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Scraper.RetryMaxDelayMS) * time.Millisecond,
			Retryable:   source.Transient,
		},
	}
}

// Cooldown exposes the shared rate-limit state, mainly for the admin surface
// and tests.
func (o *Orchestrator) Cooldown() *Cooldown {
	return o.cooldown
}

// LastCycle returns a copy of the most recent cycle summary.
func (o *Orchestrator) LastCycle() CycleSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCycle
}

// Start begins background processing.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("scraper already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.wg.Add(1)

	go o.run(runCtx)
	return nil
}

// Stop terminates background processing. The in-flight title is given the
// configured grace period to finish before its context is cut.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()

	o.logger.Info("scraper loop started",
		logging.Int("cycle_interval_seconds", o.cfg.Scraper.CycleInterval),
	)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("scraper loop stopped")
			return
		default:
		}

		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("scraper loop stopped")
			return
		case <-time.After(time.Duration(o.cfg.Scraper.CycleInterval) * time.Second):
		}
	}
}

// RunCycle executes one full scrape cycle: select everything due, process
// sequentially, stop early on a global fault.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if o.cooldown.Active() {
		o.logger.Info("cycle skipped, cooldown active",
			logging.Duration("remaining", o.cooldown.Remaining()),
			logging.String(logging.FieldEventType, "cycle_cooldown_skip"),
		)
		return
	}

	runID := uuid.NewString()
	summary := CycleSummary{RunID: runID, StartedAt: time.Now()}
	logger := o.logger.With(logging.String(logging.FieldRunID, runID))

	due, err := o.store.ListDue(ctx, time.Now())
	if err != nil {
		logger.Error("failed to select due titles",
			logging.Error(err),
			logging.String(logging.FieldEventType, "select_due_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	summary.Due = len(due)

	if len(due) == 0 {
		o.finishCycle(summary)
		return
	}
	logger.Info("cycle started", logging.Int("due", len(due)))

	for i, entry := range due {
		if ctx.Err() != nil {
			break
		}
		if o.cooldown.Active() {
			logger.Warn("cycle aborted, cooldown set mid-cycle",
				logging.Int("remaining_titles", len(due)-i),
				logging.String(logging.FieldEventType, "cycle_cooldown_abort"),
			)
			break
		}
		if i > 0 {
			if !o.politenessDelay(ctx) {
				break
			}
		}

		result := o.processDueTitle(ctx, entry, runID, logger)
		summary.Processed++
		summary.NewChapters += result.NewChapters
		if result.Err != nil {
			summary.Errors++
		}
		if errors.Is(result.Err, source.ErrRateLimited) {
			o.cooldown.Set(time.Duration(o.cfg.Scraper.CooldownSeconds) * time.Second)
			logger.Warn("rate limited by upstream, cooling down",
				logging.Int64(logging.FieldTitleID, entry.Title.ID),
				logging.Duration("cooldown", o.cooldown.Remaining()),
				logging.String(logging.FieldEventType, "rate_limit_cooldown"),
				logging.String(logging.FieldAlert, "rate_limited"),
			)
		}
		if result.Fatal {
			logger.Error("cycle aborted on infrastructure fault",
				logging.Error(result.Err),
				logging.String(logging.FieldEventType, "cycle_fatal_abort"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			break
		}
	}

	o.finishCycle(summary)
	logger.Info("cycle finished",
		logging.Int("processed", summary.Processed),
		logging.Int("new_chapters", summary.NewChapters),
		logging.Int("errors", summary.Errors),
	)
}

func (o *Orchestrator) processDueTitle(ctx context.Context, entry *store.DueTitle, runID string, logger *slog.Logger) *TitleResult {
	titleCtx, cancel := o.titleContext(ctx)
	defer cancel()

	title := entry.Title
	schedule := entry.Schedule
	return o.processTitle(titleCtx, &title, &schedule, runID, logger)
}

// ScrapeTitle runs the standard per-title pipeline for one title on demand,
// bypassing the due-time check. Manual and scheduled runs share the exact
// same path so their behavior cannot diverge. The global cooldown still
// applies; manual triggers are not exempt from upstream politeness.
func (o *Orchestrator) ScrapeTitle(ctx context.Context, titleID int64) (*TitleResult, error) {
	if o.cooldown.Active() {
		return nil, errors.New("scraping is cooling down after an upstream rate limit")
	}

	title, err := o.store.GetTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if title == nil {
		return nil, errors.New("title not found")
	}
	schedule, err := o.store.GetSchedule(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, errors.New("title has no schedule")
	}

	runID := "manual-" + uuid.NewString()
	result := o.processTitle(ctx, title, schedule, runID, o.logger.With(logging.String(logging.FieldRunID, runID)))
	if errors.Is(result.Err, source.ErrRateLimited) {
		o.cooldown.Set(time.Duration(o.cfg.Scraper.CooldownSeconds) * time.Second)
	}
	return result, nil
}

func (o *Orchestrator) finishCycle(summary CycleSummary) {
	summary.FinishedAt = time.Now()
	o.mu.Lock()
	o.lastCycle = summary
	o.mu.Unlock()
}

// politenessDelay sleeps a uniformly random interval between titles. Returns
// false when cancelled. Sequential processing plus this delay is a deliberate
// politeness control toward an endpoint with no rate-limit contract.
func (o *Orchestrator) politenessDelay(ctx context.Context) bool {
	minDelay := time.Duration(o.cfg.Scraper.TitleDelayMinSeconds) * time.Second
	maxDelay := time.Duration(o.cfg.Scraper.TitleDelayMaxSeconds) * time.Second
	delay := minDelay
	if spread := maxDelay - minDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// titleContext derives a context that outlives a cancelled parent by the
// shutdown grace period, so an in-flight title can finish persisting instead
// of being cut mid-pipeline.
func (o *Orchestrator) titleContext(parent context.Context) (context.Context, context.CancelFunc) {
	grace := time.Duration(o.cfg.Scraper.ShutdownGraceSeconds) * time.Second
	if grace <= 0 {
		return context.WithCancel(parent)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	go func() {
		select {
		case <-parent.Done():
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
