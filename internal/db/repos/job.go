package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/celestiaorg/cloudjob/internal/db"
	"github.com/celestiaorg/cloudjob/internal/db/models"
)

// ErrJobConflict is returned when a tracked job collides with a different
// ledger row, e.g. a stale primary key carried over from another job
var ErrJobConflict = errors.New("job conflicts with an existing ledger row")

// trackedColumns are overwritten when a job is observed again
var trackedColumns = []string{
	"updated_at",
	"resource_id",
	"status",
	"progress",
	"command",
	"result_kind",
	"result",
	"error_code",
	"error_text",
	"trace_id",
	"completed_at",
}

// JobRepository provides access to the tracked job ledger
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(gdb *gorm.DB) *JobRepository {
	return &JobRepository{db: gdb}
}

// Track inserts the job or, when the job id is already tracked, overwrites
// its latest state and bumps its observation count
func (r *JobRepository) Track(ctx context.Context, job *models.TrackedJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	if !job.Provider.IsValid() {
		return fmt.Errorf("invalid provider: %s", job.Provider)
	}
	if job.Observations == 0 {
		job.Observations = 1
	}

	updates := clause.AssignmentColumns(trackedColumns)
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "observations"},
		Value:  gorm.Expr("tracked_jobs.observations + 1"),
	})

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: models.JobIDField}},
		DoUpdates: updates,
	}).Create(job).Error
	if db.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to track job %s: %w", job.JobID, ErrJobConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to track job %s: %w", job.JobID, err)
	}
	return nil
}

// GetByJobID retrieves a tracked job by its provider job id
func (r *JobRepository) GetByJobID(ctx context.Context, jobID string) (*models.TrackedJob, error) {
	var job models.TrackedJob
	err := r.db.WithContext(ctx).Where(&models.TrackedJob{JobID: jobID}).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// List returns tracked jobs, newest first
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]models.TrackedJob, error) {
	if opts == nil {
		opts = &models.ListOptions{Limit: models.DefaultLimit}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = models.DefaultLimit
	}

	var jobs []models.TrackedJob
	err := r.filtered(ctx, opts).
		Limit(limit).Offset(opts.Offset).
		Order(models.JobCreatedAtField + " DESC").
		Order("id DESC").
		Find(&jobs).Error
	return jobs, err
}

// Count returns the number of tracked jobs matching the filters of opts
func (r *JobRepository) Count(ctx context.Context, opts *models.ListOptions) (int64, error) {
	if opts == nil {
		opts = &models.ListOptions{}
	}
	var count int64
	err := r.filtered(ctx, opts).Count(&count).Error
	return count, err
}

// PurgeCompletedBefore deletes terminal jobs completed before cutoff and
// returns how many rows were removed
func (r *JobRepository) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Delete(&models.TrackedJob{})
	return res.RowsAffected, res.Error
}

func (r *JobRepository) filtered(ctx context.Context, opts *models.ListOptions) *gorm.DB {
	qry := &models.TrackedJob{Provider: opts.Provider}
	if opts.Status != nil {
		qry.Status = *opts.Status
	}

	tx := r.db.WithContext(ctx).Model(&models.TrackedJob{}).Where(qry)
	// The zero status is JobStatusUnknown and gets dropped by struct conditions
	if opts.Status != nil && *opts.Status == models.JobStatusUnknown {
		tx = tx.Where("status = ?", models.JobStatusUnknown)
	}
	return tx
}
