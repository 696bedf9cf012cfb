package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/pkg/queue"
)

// ErrDrop marks a job that can never succeed. It is logged and not retried.
var ErrDrop = errors.New("job dropped")

// JobQueue is the Redis job queue as seen by the worker.
type JobQueue interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor executes one job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Dispatcher dequeues jobs and routes them to the processor of their type.
type Dispatcher struct {
	queue      JobQueue
	processors map[queue.JobType]Processor
	metrics    *metrics.Metrics
	backoff    time.Duration
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher. Jobs of types without a processor are dropped.
func NewDispatcher(q JobQueue, processors map[queue.JobType]Processor, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, processors: processors, metrics: m, backoff: queue.RetryBackoff, logger: logger}
}

// Handle processes one job and retries it on failure.
func (d *Dispatcher) Handle(ctx context.Context, job *queue.Job) {
	p, ok := d.processors[job.Type]
	if !ok {
		d.metrics.Job(string(job.Type), "dropped")
		d.logger.Warn("no processor for job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return
	}
	err := p.Process(ctx, job)
	switch {
	case err == nil:
		d.metrics.Job(string(job.Type), "ok")
	case errors.Is(err, ErrDrop):
		d.metrics.Job(string(job.Type), "dropped")
		d.logger.Warn("job dropped", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
	default:
		d.metrics.Job(string(job.Type), "retry")
		d.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := d.queue.Retry(ctx, job); reErr != nil {
			d.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		d.sleep(ctx)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (d *Dispatcher) Run(ctx context.Context, keys ...string) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := d.queue.Dequeue(ctx, keys...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Warn("dequeue error", zap.Error(err))
			d.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		d.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		d.Handle(ctx, job)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.backoff):
	}
}

func drop(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDrop, fmt.Sprintf(format, args...))
}
