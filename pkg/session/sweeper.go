package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the optional background worker that deletes session rows past
// their expires_at deadline. Expiry itself is enforced at read time; running
// the sweeper only reclaims storage. It is wired explicitly by the server
// rather than being an implicit side effect of reads.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that runs a cleanup pass every interval
// (default one hour).
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run starts the sweeper. It blocks until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session sweeper started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	deleted, err := w.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("session sweep failed", "error", err)
	} else if deleted > 0 {
		w.logger.Info("session sweep completed", "deleted", deleted)
	}
}
