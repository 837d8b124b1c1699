// Package jobs runs the background plan worker: a single-flight loop that
// drains queued plan jobs, invokes the planner, and writes terminal states
// back to storage.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/planner"
	"github.com/hyperjump/keikaku/internal/storage"
)

// Worker owns the plan queue. At most one processing loop is active at a
// time; the loop exits when the queue drains and is restarted lazily by the
// next submission or Start call.
type Worker struct {
	store   storage.Storage
	planner *planner.Planner
	logger  *zap.Logger

	running atomic.Bool
	baseCtx context.Context
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// NewWorker creates a worker bound to ctx. The loop stops when ctx is
// cancelled; a job already in processing runs to a terminal state.
func NewWorker(ctx context.Context, store storage.Storage, p *planner.Planner, opts ...Option) *Worker {
	w := &Worker{
		store:   store,
		planner: p,
		logger:  zap.NewNop(),
		baseCtx: ctx,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit validates the payload, persists a queued job, and starts the worker
// if it is not running. It returns immediately; generation happens off the
// request path and the caller polls the job id for the outcome.
func (w *Worker) Submit(ctx context.Context, payload models.PlanJobPayload) (*models.PlanJob, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan request: %w", err)
	}

	job := &models.PlanJob{
		ID:        uuid.New().String(),
		ProjectID: payload.ProjectID,
		Payload:   payload,
	}
	if err := w.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue plan job: %w", err)
	}
	w.logger.Info("plan job queued",
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
		zap.String("version", payload.Version))

	w.Start()
	return job, nil
}

// Start launches the processing loop unless one is already active. The
// compare-and-swap guard makes concurrent calls a no-op, so there is never
// more than one job in flight.
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	go w.loop()
}

// Running reports whether a processing loop is currently active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// loop claims and processes queued jobs oldest first until none remain, then
// clears the running flag. A submission can land between the empty claim and
// the flag clear, so the queue is re-checked before the goroutine exits.
func (w *Worker) loop() {
	for {
		for {
			if w.baseCtx.Err() != nil {
				w.running.Store(false)
				return
			}
			job, err := w.store.ClaimNextQueuedJob(w.baseCtx)
			if err != nil {
				w.logger.Error("claim queued job", zap.Error(err))
				w.running.Store(false)
				return
			}
			if job == nil {
				break
			}
			w.process(job)
		}

		w.running.Store(false)
		n, err := w.store.CountQueuedJobs(w.baseCtx)
		if err != nil || n == 0 {
			return
		}
		if !w.running.CompareAndSwap(false, true) {
			// Someone else restarted the loop already.
			return
		}
	}
}

// process runs one claimed job to a terminal state. Panics and pipeline
// errors fail the job, never the loop; store write failures are logged and
// leave the job in its last durable state.
func (w *Worker) process(job *models.PlanJob) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("plan job panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
			w.failJob(job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	w.logger.Info("plan job started", zap.String("job_id", job.ID))
	result, err := w.planner.Plan(w.baseCtx, job.Payload)
	if err != nil {
		w.logger.Warn("plan job failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
		w.failJob(job.ID, err.Error())
		return
	}

	if err := w.store.CompleteJob(w.baseCtx, job.ID, result); err != nil {
		w.logger.Error("persist job result",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}
	if err := w.store.ReplaceBacklog(w.baseCtx, job.ProjectID, result.Items); err != nil {
		w.logger.Error("replace project backlog",
			zap.String("job_id", job.ID),
			zap.String("project_id", job.ProjectID),
			zap.Error(err))
	}
	w.logger.Info("plan job done",
		zap.String("job_id", job.ID),
		zap.Int("items", len(result.Items)))
}

func (w *Worker) failJob(id, message string) {
	if err := w.store.FailJob(context.Background(), id, message); err != nil {
		w.logger.Error("mark job failed", zap.String("job_id", id), zap.Error(err))
	}
}
