package signaling

import (
	"context"
	"log/slog"
	"time"
)

// Reaper bounds session lifetimes:
// - sessions stuck before in_call (ringing/accepted with no forward
//   progress) past RingTimeout are force-ended with reason timeout;
// - ended sessions past Retention are evicted from the store.
type Reaper struct {
	store *Store
	log   *slog.Logger

	interval    time.Duration
	ringTimeout time.Duration
	retention   time.Duration

	clock func() time.Time
}

type ReaperConfig struct {
	Interval    time.Duration
	RingTimeout time.Duration
	Retention   time.Duration

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

func NewReaper(store *Store, log *slog.Logger, cfg ReaperConfig) *Reaper {
	r := &Reaper{
		store:       store,
		log:         log,
		interval:    cfg.Interval,
		ringTimeout: cfg.RingTimeout,
		retention:   cfg.Retention,
		clock:       cfg.Clock,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Second
	}
	if r.ringTimeout <= 0 {
		r.ringTimeout = time.Minute
	}
	if r.retention <= 0 {
		r.retention = 30 * time.Second
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// Run sweeps on a fixed interval until ctx is canceled.
// Start it once on service init; it stops with the root context.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("session reaper started", "interval", r.interval, "ring_timeout", r.ringTimeout, "retention", r.retention)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("session reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep performs one pass over all sessions. Exported so tests and the
// shutdown path can run it synchronously.
func (r *Reaper) Sweep() (timedOut, evicted int) {
	now := r.clock().UTC()

	for _, id := range r.store.IDs() {
		snap, err := r.store.Get(id)
		if err != nil {
			// Removed concurrently; nothing to do.
			continue
		}

		if snap.Terminal() {
			if now.Sub(snap.EndedAt) >= r.retention {
				r.store.Remove(id)
				evicted++
			}
			continue
		}

		if snap.Status != StatusRinging && snap.Status != StatusAccepted {
			continue
		}
		if now.Sub(snap.UpdatedAt) < r.ringTimeout {
			continue
		}

		// Re-check under the session lock; a racing answer or end wins.
		_, err = r.store.Mutate(id, func(s *CallSession) error {
			if s.Terminal() {
				return ErrInvalidState
			}
			if s.Status != StatusRinging && s.Status != StatusAccepted {
				return ErrInvalidState
			}
			if now.Sub(s.UpdatedAt) < r.ringTimeout {
				return ErrInvalidState
			}
			s.Status = StatusEnded
			s.EndedAt = now
			s.EndReason = EndReasonTimeout
			s.UpdatedAt = now
			return nil
		})
		if err == nil {
			timedOut++
			r.log.Info("session timed out", "call_id", id)
		}
	}
	return timedOut, evicted
}
