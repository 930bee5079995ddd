package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Expirer closes attempts whose deadline has passed.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpiryWorker submits overdue attempts on a fixed interval so attempts close
// at their deadline even when no client is connected.
type ExpiryWorker struct {
	expirer  Expirer
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(expirer Expirer, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &ExpiryWorker{
		expirer:  expirer,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start sweeps until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			n, err := w.expirer.ExpireDue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Expiry sweep failed")
				}
				continue
			}
			if n > 0 {
				w.log.Info().Int("graded", n).Msg("Expired attempts submitted")
			}
		}
	}
}
