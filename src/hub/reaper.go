package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper periodically evicts empty, long-idle rooms so the registry does
// not grow without bound.
type Reaper struct {
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewReaper creates a reaper sweeping the hub every interval, evicting
// rooms empty and idle for at least timeout.
func NewReaper(h *Hub, interval, timeout time.Duration, logger zerolog.Logger) *Reaper {
	return &Reaper{
		hub:      h,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "reaper").Logger(),
	}
}

// Run sweeps until the context is canceled. Call in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.hub.Sweep(r.timeout); n > 0 {
				r.logger.Debug().Int("evicted", n).Msg("sweep complete")
			}
		case <-ctx.Done():
			return
		}
	}
}
