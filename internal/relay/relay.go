// Package relay moves pending notifications out of the database and onto the
// configured delivery channel. It polls on an interval rather than listening
// for writes, so any process with access to the database can enqueue
// notifications and this one will pick them up.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/logging"
	"mangawatch/internal/notifications"
	"mangawatch/internal/store"
)

const pollBatchSize = 50

// Relay is the delivery loop. Polls drain undelivered notifications in
// importance order and mark each row delivered only after its push succeeds.
// The delivered flip is a compare-and-set, so concurrent relays against the
// same database cannot double-deliver a row.
type Relay struct {
	cfg     *config.Config
	store   *store.Store
	channel notifications.Channel
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a relay against the given store and channel.
func New(cfg *config.Config, st *store.Store, channel notifications.Channel, logger *slog.Logger) *Relay {
	return &Relay{
		cfg:     cfg,
		store:   st,
		channel: channel,
		logger:  logging.NewComponentLogger(logger, "relay"),
	}
}

// Start begins background polling.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("relay already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)

	go r.run(runCtx)
	return nil
}

// Stop terminates background polling and waits for the in-flight poll.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	interval := time.Duration(r.cfg.Relay.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	r.logger.Info("relay loop started", logging.Duration("poll_interval", interval))

	for {
		if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("poll failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "relay_poll_failed"),
			)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// Poll drains one batch of undelivered notifications. Returns how many were
// pushed and marked delivered. A push failure leaves its row pending and
// does not stop the rest of the batch; the row is retried on a later poll.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	pending, err := r.store.ListUndelivered(ctx, pollBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, notification := range pending {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := r.channel.Push(ctx, notification); err != nil {
			r.logger.Warn("push failed, will retry on next poll",
				logging.Int64("notification_id", notification.ID),
				logging.String("kind", string(notification.Kind)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "relay_push_failed"),
			)
			continue
		}

		won, err := r.store.MarkDelivered(ctx, notification.ID)
		if err != nil {
			return delivered, err
		}
		if !won {
			// Another relay instance delivered this row between our list and
			// our push. The duplicate push already happened; the flag just
			// records a single delivery.
			continue
		}
		delivered++
	}

	if delivered > 0 {
		r.logger.Info("notifications delivered", logging.Int("count", delivered))
	}
	return delivered, nil
}
