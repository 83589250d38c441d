package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultReaperInterval is used when a Reaper is built with a non-positive interval.
const DefaultReaperInterval = time.Hour

// Reaper periodically stops and deletes expired sessions. It reclaims
// storage only; access-time validation in Manager does not depend on it.
type Reaper struct {
	manager  *Manager
	interval time.Duration
	onSweep  func(reaped int)

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewReaper returns a reaper sweeping every interval.
func NewReaper(manager *Manager, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	return &Reaper{
		manager:  manager,
		interval: interval,
	}
}

// OnSweep registers fn to be called with the reclaimed count after every
// sweep that reclaimed at least one session. It must be set before Start.
func (r *Reaper) OnSweep(fn func(reaped int)) {
	r.onSweep = fn
}

// Start launches the sweep loop. It returns immediately; the loop runs until
// ctx is cancelled or Close is called. Calling Start twice is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.run(loopCtx)
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.SweepOnce(ctx)
			if err != nil {
				r.manager.logger.Error("session reaper: sweep failed", "error", err)
				continue
			}
			if n > 0 {
				r.manager.logger.Info("reaped expired sessions", "count", n)
			}
		}
	}
}

// SweepOnce stops every active session that is expired now and returns how
// many were reclaimed. Sessions removed concurrently are skipped.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	active, err := r.manager.dao.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := r.manager.now()
	reaped := 0
	var errs []error
	for _, s := range active {
		if !s.IsExpired(now) {
			continue
		}
		ok, err := r.manager.expire(ctx, s.ID)
		if err != nil {
			if errors.Is(err, ErrUnknownSession) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if ok {
			reaped++
		}
	}

	if reaped > 0 && r.onSweep != nil {
		r.onSweep(reaped)
	}
	return reaped, errors.Join(errs...)
}

// Close stops the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		r.wg.Wait()
	})
}
