package cache

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// backgroundDispatcher runs SWR/full-protection revalidation off the
// caller's critical path. It wraps
// github.com/panjf2000/ants/v2's bounded pool so the revalidation rate is
// capped instead of spawning an unbounded goroutine per stale read, and it
// recovers panics so a bad loader never takes the pool down or vanishes
// silently.
type backgroundDispatcher struct {
	pool *ants.Pool
	log  *zap.Logger
}

func newBackgroundDispatcher(size int, log *zap.Logger) (*backgroundDispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = 64
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &backgroundDispatcher{pool: pool, log: log}, nil
}

// Dispatch submits task to the pool. Submission blocks (rather than
// dropping work) until a worker is free, trading latency for bounded
// concurrency instead of unbounded task creation. Submission itself can
// only fail once the pool has been released.
func (d *backgroundDispatcher) Dispatch(task func()) {
	err := d.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("cache: background revalidation task panicked", zap.Any("recover", r))
			}
		}()
		task()
	})
	if err != nil {
		d.log.Error("cache: failed to dispatch background revalidation", zap.Error(err))
	}
}

// Release closes the pool to new submissions. It returns without waiting
// for tasks that are already running.
func (d *backgroundDispatcher) Release() {
	d.pool.Release()
}
