package bot

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"budgetbridge/internal/shared/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("budgetbridge/bot")
	jobMeter           = otel.Meter("budgetbridge/bot")
	jobDuration, _     = jobMeter.Float64Histogram("bot.job.duration", metric.WithDescription("Event handling duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("bot.job.total", metric.WithDescription("Total events handled by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("bot.job.queue_dropped", metric.WithDescription("Events rejected due to full queue"))
)

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// WorkerPool runs jobs on a fixed set of goroutines. Every worker owns its
// queue and a user's jobs always land on the same worker, so events of one
// user are handled in arrival order while different users run in parallel.
type WorkerPool struct {
	queues     []chan Job
	jobTimeout time.Duration
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a pool of workerCount workers, each with a queue of
// queueSize jobs. jobTimeout bounds a single job.
func NewWorkerPool(workerCount, queueSize int, jobTimeout time.Duration) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	queues := make([]chan Job, workerCount)
	for i := range queues {
		queues[i] = make(chan Job, queueSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queues:     queues,
		jobTimeout: jobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers. ctx is the parent of every job context;
// cancelling it aborts running jobs.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.cancel()
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	logger.FromContext(ctx).Info().Int("workers", len(wp.queues)).Msg("Starting worker pool")

	for i, q := range wp.queues {
		wp.wg.Add(1)
		go wp.worker(i+1, q)
	}
}

func (wp *WorkerPool) worker(id int, jobs <-chan Job) {
	defer wp.wg.Done()

	for job := range jobs {
		wp.processJob(id, job)
	}
	logger.FromContext(wp.ctx).Debug().Int("worker", id).Msg("Worker stopped")
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx := wp.ctx
	if wp.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.jobTimeout)
		defer cancel()
	}

	ctx, span := jobTracer.Start(ctx, "bot.job",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	log := logger.FromContext(ctx)
	start := time.Now()

	err := wp.execute(ctx, job)
	jobDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		log.Error().Err(err).Str("job", job.Description()).Str("user_id", job.UserID()).Msg("Job failed")
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.Debug().Str("job", job.Description()).Dur("took", time.Since(start)).Msg("Job completed")
}

// execute reports a panicking job as an error.
func (wp *WorkerPool) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("job panicked")
			logger.FromContext(ctx).Error().Interface("panic", r).Str("job", job.Description()).Msg("Recovered from panic")
		}
	}()
	return job.Execute(ctx)
}

// Submit queues job on its user's worker without blocking. It returns
// ErrQueueFull when that worker's queue is full and ErrPoolStopped after
// Shutdown.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.queues[wp.shard(job.UserID())] <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return ErrQueueFull
	}
}

func (wp *WorkerPool) shard(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(wp.queues)))
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When
// timeout elapses first, running jobs are cancelled.
func (wp *WorkerPool) Shutdown(timeout time.Duration) {
	log := logger.FromContext(wp.ctx)
	log.Info().Dur("timeout", timeout).Msg("Worker pool: initiating graceful shutdown")

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	for _, q := range wp.queues {
		close(q)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Worker pool: all workers finished")
	case <-time.After(timeout):
		log.Warn().Msg("Worker pool: timeout reached, cancelling running jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
