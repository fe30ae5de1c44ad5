// Package followup runs cross-aggregate side effects after the primary
// write has committed. Failures are retried, then logged and reported.
package followup

import (
	"context"
	"sync"
	"time"

	"tradehub/internal/domain/service"
	"tradehub/pkg/logger"
)

type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
}

type Runner struct {
	opts     Options
	reporter service.RemediationReporter
	queue    chan service.FollowUp

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewRunner(opts Options, reporter service.RemediationReporter) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if reporter == nil {
		reporter = LogReporter{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		opts:     opts,
		reporter: reporter,
		queue:    make(chan service.FollowUp, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
	for i := 0; i < opts.Workers; i++ {
		r.workers.Add(1)
		go r.work()
	}
	return r
}

// Submit schedules task and returns immediately. When the queue is full
// the task gets its own goroutine.
func (r *Runner) Submit(task service.FollowUp) {
	r.pending.Add(1)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.closed {
		select {
		case r.queue <- task:
			return
		default:
		}
	}
	go r.execute(task)
}

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.pending.Wait()
}

// Stop drains queued tasks and stops the workers. Backoff sleeps are cut
// short, so remaining retries are not attempted.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		r.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Runner) work() {
	defer r.workers.Done()
	for task := range r.queue {
		r.execute(task)
	}
}

func (r *Runner) execute(task service.FollowUp) {
	defer r.pending.Done()

	var err error
	attempt := 0
	for attempt < r.opts.MaxAttempts {
		attempt++
		err = r.attempt(task)
		if err == nil {
			return
		}
		logger.LogFollowUpError(task.Kind, task.AggregateID, attempt, err)

		if attempt < r.opts.MaxAttempts && !r.sleep(time.Duration(attempt)*r.opts.Backoff) {
			break
		}
	}

	failure := service.FailedFollowUp{
		Kind:        task.Kind,
		AggregateID: task.AggregateID,
		Target:      task.Target,
		Attempts:    attempt,
		Error:       err.Error(),
		FailedAt:    r.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	if reportErr := r.reporter.Report(ctx, failure); reportErr != nil {
		logger.Error("Remediation report failed: kind=%s, aggregateID=%s, error=%v", task.Kind, task.AggregateID, reportErr)
	}
}

func (r *Runner) attempt(task service.FollowUp) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.Timeout)
	defer cancel()
	return task.Run(ctx)
}

func (r *Runner) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// LogReporter only logs failures. It is used when no broker is configured.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, f service.FailedFollowUp) error {
	logger.Error("Follow-up abandoned: kind=%s, aggregateID=%s, target=%s, attempts=%d, error=%s",
		f.Kind, f.AggregateID, f.Target, f.Attempts, f.Error)
	return nil
}
