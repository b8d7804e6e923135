package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"log/slog"

	"mangawatch/internal/config"
	"mangawatch/internal/logging"
	"mangawatch/internal/notifications"
	"mangawatch/internal/relay"
	"mangawatch/internal/scraper"
	"mangawatch/internal/store"
	"mangawatch/internal/textutil"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a file lock. It owns the scraper loop, the notification
// relay, and the HTTP admin surface.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	scraper *scraper.Orchestrator
	relay   *relay.Relay
	api     *apiServer
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	DatabasePath   string
	LockFilePath   string
	TitleCount     int
	CooldownActive bool
	CooldownUntil  time.Time
	LastCycle      scraper.CycleSummary
}

// Health aggregates scrape outcomes over the configured trailing window.
type Health struct {
	WindowHours int
	Stats       store.ScrapeStats
	Degraded    bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, client scraper.SourceClient, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || client == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, source client, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "mangawatchd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		scraper:  scraper.NewOrchestrator(cfg, st, client, logger),
		relay:    relay.New(cfg, st, notifications.NewChannel(cfg), logger),
		logPath:  filepath.Join(cfg.Paths.LogDir, "mangawatch.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mangawatch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scraper.Start(runCtx); err != nil {
		d.releaseStart(cancel)
		return fmt.Errorf("start scraper: %w", err)
	}
	if err := d.relay.Start(runCtx); err != nil {
		d.scraper.Stop()
		d.releaseStart(cancel)
		return fmt.Errorf("start relay: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.relay.Stop()
			d.scraper.Stop()
			d.releaseStart(cancel)
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("mangawatch daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart(cancel context.CancelFunc) {
	_ = d.lock.Unlock()
	cancel()
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.relay.Stop()
	d.scraper.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mangawatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// AddTitle registers a collection entry for monitoring. The first scrape is
// scheduled immediately so the user sees data without waiting a full default
// interval.
func (d *Daemon) AddTitle(ctx context.Context, collectionID, sourceID, name string) (*store.Title, error) {
	collectionID = strings.TrimSpace(collectionID)
	sourceID = strings.TrimSpace(sourceID)
	if collectionID == "" {
		return nil, errors.New("collection id is required")
	}
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}
	name = textutil.NormalizeTitleName(name)
	if name == "" {
		name = collectionID
	}

	existing, err := d.store.GetTitleByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("collection entry %q is already tracked", collectionID)
	}

	title, err := d.store.CreateTitle(ctx, collectionID, sourceID, name, time.Now())
	if err != nil {
		return nil, err
	}
	d.logger.Info("title registered",
		logging.Int64(logging.FieldTitleID, title.ID),
		logging.String("name", title.Name),
		logging.String(logging.FieldSourceID, sourceID),
	)
	return title, nil
}

// Titles returns all tracked titles with their schedules.
func (d *Daemon) Titles(ctx context.Context) ([]*store.Title, error) {
	return d.store.ListTitles(ctx)
}

// TriggerScrape runs the scrape pipeline for one title immediately.
func (d *Daemon) TriggerScrape(ctx context.Context, titleID int64) (*scraper.TitleResult, error) {
	return d.scraper.ScrapeTitle(ctx, titleID)
}

// Notifications returns the newest notifications, undelivered first when
// pendingOnly is set.
func (d *Daemon) Notifications(ctx context.Context, limit int, pendingOnly bool) ([]*store.Notification, error) {
	if pendingOnly {
		return d.store.ListUndelivered(ctx, limit)
	}
	return d.store.ListRecentNotifications(ctx, limit)
}

// MarkNotificationRead flags a notification as seen by the user.
func (d *Daemon) MarkNotificationRead(ctx context.Context, id int64) error {
	return d.store.MarkRead(ctx, id)
}

// Health reports scrape reliability over the configured trailing window.
func (d *Daemon) Health(ctx context.Context) (Health, error) {
	window := d.cfg.Health.WindowHours
	if window <= 0 {
		window = 24
	}
	stats, err := d.store.ScrapeStatsSince(ctx, time.Now().Add(-time.Duration(window)*time.Hour))
	if err != nil {
		return Health{}, err
	}
	return Health{
		WindowHours: window,
		Stats:       *stats,
		Degraded:    stats.Degraded(d.cfg.Health.ErrorRateThreshold),
	}, nil
}

// RecentFailures returns the newest failed scrape attempts.
func (d *Daemon) RecentFailures(ctx context.Context, limit int) ([]*store.ScrapeLogEntry, error) {
	return d.store.RecentFailures(ctx, limit)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound admin address, empty until started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LastCycle:    d.scraper.LastCycle(),
	}
	cooldown := d.scraper.Cooldown()
	status.CooldownActive = cooldown.Active()
	if status.CooldownActive {
		status.CooldownUntil = cooldown.Until()
	}
	if titles, err := d.store.ListTitles(ctx); err == nil {
		status.TitleCount = len(titles)
	}
	return status
}
