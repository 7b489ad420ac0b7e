package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// JobRecorder persists the state transitions of a job.
type JobRecorder interface {
	Create(ctx context.Context, jobID string, job models.Job) error
	Update(ctx context.Context, jobID, status string, fields map[string]interface{}) error
}

// LogRecorder records transitions in the log only. It is used when no
// Firestore collection is configured.
type LogRecorder struct{}

func (LogRecorder) Create(_ context.Context, jobID string, job models.Job) error {
	slog.Info("Job created.", "jobId", jobID, "pipeline", job.Pipeline, "originalFilename", job.OriginalFilename)
	return nil
}

func (LogRecorder) Update(_ context.Context, jobID, status string, fields map[string]interface{}) error {
	slog.Info("Job status updated.", "jobId", jobID, "status", status, "fields", fields)
	return nil
}

// jobTracker walks one job through its states. Recording failures are
// logged and never fail the pipeline.
type jobTracker struct {
	recorder JobRecorder
	jobID    string
	logCtx   *slog.Logger
	status   string
}

func newJobTracker(recorder JobRecorder, jobID string, logCtx *slog.Logger) *jobTracker {
	if recorder == nil {
		recorder = LogRecorder{}
	}
	return &jobTracker{recorder: recorder, jobID: jobID, logCtx: logCtx}
}

func (t *jobTracker) start(ctx context.Context, job models.Job) {
	job.Status = models.StatusReceived
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	t.status = job.Status
	if err := t.recorder.Create(ctx, t.jobID, job); err != nil {
		t.logCtx.Error("Failed to record new job", "error", err)
	}
}

func (t *jobTracker) advance(ctx context.Context, status string, fields map[string]interface{}) {
	if models.IsTerminal(t.status) {
		t.logCtx.Warn("Ignoring transition out of a terminal state.", "from", t.status, "to", status)
		return
	}
	t.status = status
	if err := t.recorder.Update(ctx, t.jobID, status, fields); err != nil {
		t.logCtx.Error("Failed to record job status", "status", status, "error", err)
	}
}

// fail records the terminal failure with the error text as details.
func (t *jobTracker) fail(ctx context.Context, cause error) {
	t.advance(ctx, models.StatusFailed, map[string]interface{}{"errorDetails": cause.Error()})
}
