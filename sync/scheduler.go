package sync

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/lalantsika/lalantsika_backend/config"
)

const schedulerLockKey = "lock:sync-scheduler"

// StartScheduler runs a periodic full pass until ctx is cancelled. A
// redis lock keeps the pass on exactly one replica per tick; losing
// the race is the normal case everywhere but the winner.
func (e *Engine) StartScheduler(ctx context.Context) {
	interval := schedulerInterval()
	e.logger.WithField("interval", interval.String()).Info("sync scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			e.runScheduledPass(ctx, interval)
		}
	}
}

func (e *Engine) runScheduledPass(ctx context.Context, interval time.Duration) {
	locker := config.GetRedisLock()
	if locker == nil {
		// No redis means a single-replica deployment; run anyway.
		e.RunFullPass(ctx)
		return
	}

	lock, err := locker.Obtain(ctx, schedulerLockKey, interval, nil)
	if err == redislock.ErrNotObtained {
		return
	}
	if err != nil {
		config.LogError(e.logger, "sync", "runScheduledPass", "obtain lock", nil, err)
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
			config.LogError(e.logger, "sync", "runScheduledPass", "release lock", nil, err)
		}
	}()

	e.RunFullPass(ctx)
}

func schedulerInterval() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("SYNC_INTERVAL_MINUTES"))
	if err != nil || minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}
