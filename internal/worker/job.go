package worker

import (
	"context"
	"sync"
	"time"

	"github.com/mathscan/mathscan/internal/ocr"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Finished reports whether s is a terminal state.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Progress is one progress event of a Job.
type Progress struct {
	JobID   string    `json:"job_id"`
	Stage   ocr.Stage `json:"stage"`
	Percent int       `json:"percent"`
}

// progressBuffer holds every stage event of one job, so reporting never
// blocks the worker even if nobody reads the channel.
const progressBuffer = 8

// Job is a recognition request submitted to a Runner.
type Job struct {
	ID string

	req    ocr.Request
	ctx    context.Context
	cancel context.CancelFunc

	progress  chan Progress
	done      chan struct{}
	submitted time.Time

	mu     sync.Mutex
	status Status
	result ocr.Result
}

func newJob(parent context.Context, id string, req ocr.Request) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ID:        id,
		req:       req,
		ctx:       ctx,
		cancel:    cancel,
		progress:  make(chan Progress, progressBuffer),
		done:      make(chan struct{}),
		submitted: time.Now(),
		status:    StatusQueued,
	}
}

// Progress returns a channel of progress events. It is closed when the job
// finishes.
func (j *Job) Progress() <-chan Progress {
	return j.progress
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel requests cancellation. It has no effect once the engine has
// started on the job.
func (j *Job) Cancel() {
	j.cancel()
}

// Status returns the current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Result returns the outcome and true once the job has finished.
func (j *Job) Result() (ocr.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.status.Finished()
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (ocr.Result, error) {
	select {
	case <-j.done:
		res, _ := j.Result()
		return res, nil
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	}
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *Job) report(stage ocr.Stage, percent int) {
	select {
	case j.progress <- Progress{JobID: j.ID, Stage: stage, Percent: percent}:
	default:
	}
}

func (j *Job) finish(res ocr.Result, status Status) {
	j.mu.Lock()
	j.result = res
	j.status = status
	j.mu.Unlock()

	close(j.progress)
	close(j.done)
	j.cancel()
}
