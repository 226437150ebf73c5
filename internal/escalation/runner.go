package escalation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"campus-relay/internal/redis"
	"campus-relay/pkg/logger"

	"go.uber.org/zap"
)

// Locker is a cross-process lease. *redis.Lock satisfies it.
type Locker interface {
	TryAcquire(ctx context.Context) (func(context.Context) error, error)
}

// Runner owns the periodic sweep. At most one sweep runs at a time in this
// process, and with a Locker usually one across processes. Overlapping sweeps
// are still safe: each message is claimed in the store before it is emailed.
type Runner struct {
	processor *Processor
	interval  time.Duration
	lock      Locker
	log       *logger.Logger

	sweeping atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(processor *Processor, interval time.Duration, lock Locker, log *logger.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		processor: processor,
		interval:  interval,
		lock:      lock,
		log:       log.Named("escalation"),
	}
}

// Start launches the ticker loop. Calling Start on a running Runner is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	r.log.Logger.Info("escalation runner started", zap.Duration("interval", r.interval))
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Logger.Info("escalation runner stopped")
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep unless another is already in flight, here or
// (with a Locker) in another process. ran is false when the tick was skipped.
func (r *Runner) RunOnce(ctx context.Context) (res SweepResult, ran bool) {
	if !r.sweeping.CompareAndSwap(false, true) {
		r.log.Logger.Debug("previous sweep still running, skipping tick")
		return SweepResult{}, false
	}
	defer r.sweeping.Store(false)

	if r.lock != nil {
		release, err := r.lock.TryAcquire(ctx)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			r.log.Logger.Debug("sweep held by another process, skipping tick")
			return SweepResult{}, false
		case err != nil:
			// lock backend down: sweep locally, per-message claims still
			// keep each email single
			r.log.Logger.Warn("sweep lock unavailable", zap.Error(err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					r.log.Logger.Warn("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	started := time.Now()
	res, err := r.processor.Sweep(ctx)
	if err != nil {
		r.log.Logger.Error("escalation sweep failed", zap.Error(err))
		return res, true
	}
	if res.Candidates > 0 {
		r.log.Logger.Info("escalation sweep finished",
			zap.Int("candidates", res.Candidates),
			zap.Int("sent", res.Sent),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Duration("took", time.Since(started)),
		)
	}
	return res, true
}
