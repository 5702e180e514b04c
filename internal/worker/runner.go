// Package worker runs recognition requests in the background.
//
// A Runner owns a bounded queue and a fixed number of worker goroutines.
// Each submitted request becomes a Job with its own ID, progress channel and
// cancel function. A job can be canceled while it waits in the queue or
// before the engine starts; once the engine runs, the job completes.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/ocr"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("worker runner is closed")
)

// Recognizer is the part of *ocr.Session used by the runner.
type Recognizer interface {
	Recognize(ctx context.Context, req ocr.Request) ocr.Result
}

// Options configures a Runner.
type Options struct {
	// Workers is the number of goroutines draining the queue. Values below
	// one mean one.
	Workers int

	// QueueSize is the number of jobs that may wait. Values below one mean
	// sixteen.
	QueueSize int

	// Logger receives job lifecycle events. Defaults to the global logger
	// tagged with component "worker".
	Logger *zerolog.Logger
}

// Runner executes Jobs on a pool of goroutines.
type Runner struct {
	rec   Recognizer
	queue chan *Job
	log   zerolog.Logger

	mu     sync.Mutex
	jobs   map[string]*Job
	closed bool

	wg sync.WaitGroup
}

// New starts a Runner with opts.Workers goroutines.
func New(rec Recognizer, opts Options) *Runner {
	workers := max(opts.Workers, 1)
	queueSize := opts.QueueSize
	if queueSize < 1 {
		queueSize = 16
	}
	log := logger.WithComponent("worker")
	if opts.Logger != nil {
		log = *opts.Logger
	}

	r := &Runner{
		rec:   rec,
		queue: make(chan *Job, queueSize),
		log:   log,
		jobs:  make(map[string]*Job),
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
	return r
}

// Submit enqueues req and returns its Job. req.Progress, if set, is called in
// addition to the job's progress channel.
func (r *Runner) Submit(ctx context.Context, req ocr.Request) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	job := newJob(ctx, uuid.NewString(), req)
	job.report(ocr.StageQueued, ocr.StageQueued.Percent())
	select {
	case r.queue <- job:
	default:
		job.cancel()
		return nil, ErrQueueFull
	}
	r.jobs[job.ID] = job
	r.log.Debug().Str("job_id", job.ID).Str("path", req.Path).Msg("job queued")
	return job, nil
}

// Get returns the job with the given ID.
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Forget drops a finished job from the runner's index. Running or queued
// jobs are kept.
func (r *Runner) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || !job.Status().Finished() {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Close stops accepting jobs, cancels those still queued and waits for
// running jobs to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, job := range r.jobs {
		if job.Status() == StatusQueued {
			job.Cancel()
		}
	}
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) work() {
	defer r.wg.Done()
	for job := range r.queue {
		r.run(job)
	}
}

func (r *Runner) run(job *Job) {
	log := logger.WithJobID(r.log, job.ID)

	if err := job.ctx.Err(); err != nil {
		job.finish(ocr.Result{
			Kind:           ocr.KindCanceled,
			ErrorMessage:   "OCR canceled: " + err.Error(),
			ProcessingTime: time.Since(job.submitted),
		}, StatusCanceled)
		log.Info().Msg("job canceled before start")
		return
	}

	job.setStatus(StatusRunning)
	req := job.req
	userProgress := req.Progress
	req.Progress = func(stage ocr.Stage, percent int) {
		job.report(stage, percent)
		if userProgress != nil {
			userProgress(stage, percent)
		}
	}

	res := r.rec.Recognize(job.ctx, req)

	status := StatusCompleted
	switch {
	case res.Kind == ocr.KindCanceled:
		status = StatusCanceled
	case !res.Success:
		status = StatusFailed
	}
	job.finish(res, status)
	log.Info().
		Str("status", string(status)).
		Int64("duration_ms", res.ProcessingTimeMs()).
		Msg("job finished")
}
