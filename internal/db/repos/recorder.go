package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// JobRecorder writes every completion outcome into the job ledger. Ledger
// failures are logged and never change the outcome seen by the caller.
type JobRecorder struct {
	repo     *JobRepository
	provider models.ProviderID
	resolver *job.Resolver
	now      func() time.Time
}

var _ job.Recorder = (*JobRecorder)(nil)

// NewJobRecorder creates a recorder that tags entries with provider
func NewJobRecorder(repo *JobRepository, provider models.ProviderID) *JobRecorder {
	return &JobRecorder{
		repo:     repo,
		provider: provider,
		resolver: job.NewResolver(),
		now:      time.Now,
	}
}

// Observe implements job.Recorder
func (r *JobRecorder) Observe(ctx context.Context, h job.Handle, rec *job.Record, outcome error) {
	entry := r.entry(h, rec, outcome)
	if err := r.repo.Track(ctx, entry); err != nil {
		logger.WarnWithFields("failed to record job outcome", map[string]interface{}{
			"job_id":   h.JobID,
			"provider": r.provider.String(),
			"error":    err.Error(),
		})
	}
}

func (r *JobRecorder) entry(h job.Handle, rec *job.Record, outcome error) *models.TrackedJob {
	entry := &models.TrackedJob{
		JobID:      h.JobID,
		ResourceID: h.ResourceID,
		Provider:   r.provider,
		Status:     models.JobStatusInProgress,
		TraceID:    uuid.NewString(),
	}
	if rec != nil {
		entry.Status = fromJobStatus(rec.Status)
		entry.Progress = rec.Progress
		entry.Command = rec.Command
	}

	var (
		timeout *job.TimeoutError
		failed  *job.RemoteJobFailedError
	)
	switch {
	case outcome == nil:
		entry.Status = models.JobStatusSucceeded
		if rec != nil {
			res := r.resolver.Resolve(rec, job.KindNone)
			entry.ResultKind = res.Kind.String()
			entry.Result = rec.Result
		}
	case errors.As(outcome, &timeout):
		entry.Status = models.JobStatusTimedOut
		entry.ErrorText = timeout.Error()
	case errors.As(outcome, &failed):
		entry.Status = models.JobStatusFailed
		entry.ErrorCode = int(failed.Code)
		entry.ErrorText = failed.Text
	default:
		entry.ErrorText = outcome.Error()
	}

	if entry.Status.IsTerminal() {
		completed := r.now()
		entry.CompletedAt = &completed
	}
	return entry
}

func fromJobStatus(s job.Status) models.JobStatus {
	switch s {
	case job.StatusPending:
		return models.JobStatusPending
	case job.StatusInProgress:
		return models.JobStatusInProgress
	case job.StatusSucceeded:
		return models.JobStatusSucceeded
	case job.StatusFailed:
		return models.JobStatusFailed
	default:
		return models.JobStatusUnknown
	}
}
