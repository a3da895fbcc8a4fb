// Package worker provides a bounded pool of goroutines for CPU-heavy jobs
// such as password hashing and image transcoding. Request handlers submit a
// job and wait for its result, so the number of such jobs running at once
// never exceeds the pool size no matter how many requests arrive.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrPoolStopped is returned for jobs submitted to, or still queued in, a
// stopped pool.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is a unit of work. The context is the submitter's context.
type Job func(ctx context.Context) error

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Pool manages a fixed set of worker goroutines reading from a job queue.
type Pool struct {
	jobs        chan request
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is cancelled by Stop to signal the workers
	ctx    context.Context
	cancel context.CancelFunc

	// stopped is closed once every worker has exited
	stopped chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	logger *slog.Logger
}

// Config holds configuration options for the pool.
type Config struct {
	// WorkerCount is the number of concurrent workers.
	// Zero or negative means runtime.NumCPU().
	WorkerCount int

	// QueueSize bounds how many jobs may wait for a worker.
	// Zero or negative means 4 per worker.
	QueueSize int
}

// NewPool creates a pool. Jobs submitted before Start wait in the queue.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4 * workerCount
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:        make(chan request, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		stopped:     make(chan struct{}),
		logger:      logger,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.workerCount
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool", slog.Int("worker_count", p.workerCount))
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		go func() {
			p.wg.Wait()
			close(p.stopped)
		}()
	})
}

// Stop signals the workers to exit after their current job, fails any queued
// jobs with ErrPoolStopped and waits for the workers to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping worker pool")
		p.cancel()
		// A pool that never started has no workers to close stopped.
		p.startOnce.Do(func() { close(p.stopped) })
		<-p.stopped
		p.drain()
		p.logger.Info("worker pool stopped")
	})
}

// Do runs job on a worker and returns its error. It returns ctx.Err() if ctx
// ends before the job finishes; the job itself observes the same ctx.
func (p *Pool) Do(ctx context.Context, job Job) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}

	req := request{ctx: ctx, job: job, done: make(chan error, 1)}

	select {
	case p.jobs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		// The job may have completed just before the workers exited.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrPoolStopped
		}
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.jobs:
			req.done <- p.run(id, req)
		}
	}
}

func (p *Pool) run(id int, req request) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				slog.Int("worker_id", id),
				slog.Any("panic", r))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return req.job(req.ctx)
}

func (p *Pool) drain() {
	for {
		select {
		case req := <-p.jobs:
			req.done <- ErrPoolStopped
		default:
			return
		}
	}
}
