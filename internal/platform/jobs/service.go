package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	JobNotify = "notify"

	defaultQueueSize = 128
)

// Runner executes best-effort background work off the request path. Jobs
// that cannot be queued are dropped with a warning.
type Runner struct {
	queue   chan job
	wg      sync.WaitGroup
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type job struct {
	Type string
	Run  func(context.Context) error
}

func New(queueSize int) *Runner {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Runner{queue: make(chan job, queueSize)}
}

// Start launches the workers. They exit once ctx is cancelled, after
// draining whatever is still queued.
func (r *Runner) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Wait blocks until every worker has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) Enqueue(jobType string, run func(context.Context) error) bool {
	select {
	case r.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		r.dropped.Add(1)
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (r *Runner) Dropped() uint64 { return r.dropped.Load() }
func (r *Runner) Failed() uint64  { return r.failed.Load() }

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case j := <-r.queue:
			r.run(context.WithoutCancel(ctx), j)
		}
	}
}

func (r *Runner) drain() {
	for {
		select {
		case j := <-r.queue:
			r.run(context.Background(), j)
		default:
			return
		}
	}
}

func (r *Runner) run(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failed.Add(1)
			slog.Error("job panicked", "jobType", j.Type, "panic", rec)
		}
	}()
	if err := j.Run(ctx); err != nil {
		r.failed.Add(1)
		slog.Warn("job run failed", "jobType", j.Type, "err", err)
	}
}
