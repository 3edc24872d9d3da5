package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/perch/internal/logapi"
	"github.com/five82/perch/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
)

// StatusFetcher reads /api/status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*logapi.StatusResponse, error)
}

// RunPoller refreshes store until ctx is cancelled. Consecutive failures back
// off exponentially from interval up to maxBackoff. It always returns nil.
func RunPoller(ctx context.Context, store *state.Store, client StatusFetcher, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		refresh(ctx, store, client, logger)
		timer.Reset(calculateBackoff(store.Snapshot().ConsecutiveFailures, interval))
	}
}

func refresh(ctx context.Context, store *state.Store, client StatusFetcher, logger *slog.Logger) {
	status, err := client.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		store.Update(nil, err)
		logger.Warn("status poll failed", "err", err)
		return
	}
	store.Update(status, nil)
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
