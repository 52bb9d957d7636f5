package reaper

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	ExpireHolds(ctx context.Context, limit int) (int, error)
	CompleteElapsed(ctx context.Context, limit int) (int, error)
}

type Result struct {
	Expired   int
	Completed int
	Skipped   bool
}

// Reaper periodically cancels expired holds and completes elapsed bookings.
// Holds are also released lazily when a new hold needs their time, so a stopped
// reaper delays cleanup but never blocks bookings.
type Reaper struct {
	sweeper  Sweeper
	lock     Locker
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// New returns a reaper. A nil lock means this process always sweeps.
func New(sweeper Sweeper, lock Locker, interval time.Duration, batch int, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 500
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		sweeper:  sweeper,
		lock:     lock,
		interval: interval,
		batch:    batch,
		log:      log.With(slog.String("component", "reaper")),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info("reaper started", slog.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("sweep failed", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			r.release()
			r.log.Info("reaper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reaper) RunOnce(ctx context.Context) (Result, error) {
	if r.lock != nil {
		leader, err := r.lock.TryLock(ctx)
		if err != nil {
			return Result{Skipped: true}, err
		}
		if !leader {
			r.log.Debug("another replica holds the reaper lock")
			return Result{Skipped: true}, nil
		}
	}

	var res Result
	var err error
	res.Expired, err = r.sweeper.ExpireHolds(ctx, r.batch)
	if err != nil {
		return res, err
	}
	res.Completed, err = r.sweeper.CompleteElapsed(ctx, r.batch)
	if err != nil {
		return res, err
	}
	if res.Expired > 0 || res.Completed > 0 {
		r.log.Info("sweep finished", slog.Int("expired", res.Expired), slog.Int("completed", res.Completed))
	}
	return res, nil
}

func (r *Reaper) release() {
	if r.lock == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.lock.Unlock(ctx); err != nil {
		r.log.Warn("release reaper lock", slog.Any("err", err))
	}
}
