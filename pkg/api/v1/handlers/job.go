package handlers

import (
	"context"
	"errors"
	"fmt"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"gorm.io/gorm"

	"github.com/celestiaorg/cloudjob/internal/compute"
	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/db/repos"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
	"github.com/celestiaorg/cloudjob/internal/types"
)

// CompleterFactory returns the completer used to await jobs of provider
type CompleterFactory func(ctx context.Context, provider models.ProviderID) (*job.Completer, error)

// ProviderCompleters builds completers from cfg that record every outcome in repo
func ProviderCompleters(cfg *config.Config, repo *repos.JobRepository) CompleterFactory {
	return func(ctx context.Context, provider models.ProviderID) (*job.Completer, error) {
		return compute.NewCompleter(ctx, provider, cfg, job.WithRecorder(repos.NewJobRecorder(repo, provider)))
	}
}

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	repo       *repos.JobRepository
	completers CompleterFactory
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(repo *repos.JobRepository, completers CompleterFactory) *JobHandler {
	return &JobHandler{
		repo:       repo,
		completers: completers,
	}
}

// ListJobs handles the request to list tracked jobs
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgNegativePagination))
	}
	opts := getPaginationOptions(page)

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(types.ErrInvalidInput(ErrMsgInvalidStatus))
		}
		opts.Status = &status
	}

	if providerStr := c.Query("provider"); providerStr != "" {
		provider := models.ProviderID(providerStr)
		if !provider.IsValid() {
			return c.Status(fiber.StatusBadRequest).
				JSON(types.ErrInvalidInput(ErrMsgInvalidProvider))
		}
		opts.Provider = provider
	}

	jobs, err := h.repo.List(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgJobListFailed))
	}
	total, err := h.repo.Count(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgJobListFailed))
	}

	return c.JSON(types.ListJobsResponse{
		Slug: types.SuccessSlug,
		Jobs: jobs,
		Pagination: types.PaginationResponse{
			Total:  total,
			Page:   page,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	})
}

// GetJob handles the request to get a tracked job by its provider job id
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	tracked, err := h.repo.GetByJobID(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).
				JSON(types.ErrNotFound(ErrMsgJobNotFound))
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgJobGetFailed))
	}

	return c.JSON(types.Success(tracked))
}

// AwaitJob waits for a provider job to finish and returns its resolved result
func (h *JobHandler) AwaitJob(c *fiber.Ctx) error {
	// Params point into the request buffer and the recorder keeps the id
	jobID := utils.CopyString(c.Params("id"))
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	var req types.AwaitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(err.Error()))
	}

	completer, err := h.completers(c.Context(), req.Provider)
	if err != nil {
		logger.Errorf("failed to build completer for %s: %v", req.Provider, err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgCompleterFailed))
	}

	handle := job.Handle{ResourceID: req.ResourceID, JobID: jobID}
	res, err := completer.Complete(c.Context(), handle)
	if err != nil {
		return awaitError(c, jobID, err)
	}

	return c.JSON(types.Success(types.AwaitJobResult{
		JobID:      jobID,
		ResourceID: req.ResourceID,
		Provider:   req.Provider,
		Kind:       res.Kind.String(),
		Result:     res.Value,
	}))
}

func awaitError(c *fiber.Ctx, jobID string, err error) error {
	var failed *job.RemoteJobFailedError
	switch {
	case errors.As(err, &failed):
		return c.Status(fiber.StatusBadGateway).
			JSON(types.ErrJobFailed(ErrMsgJobFailed, &types.JobFailure{
				JobID: jobID,
				Code:  int(failed.Code),
				Name:  failed.Code.String(),
				Text:  failed.Text,
			}))
	case errors.Is(err, job.ErrOperationTimedOut):
		logger.Warnf("gave up waiting on job %s: %v", jobID, err)
		return c.Status(fiber.StatusGatewayTimeout).
			JSON(types.ErrTimeout(ErrMsgJobTimedOut))
	case errors.Is(err, job.ErrInvalidJobID):
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(fmt.Sprintf("%s: %s", ErrMsgInvalidJobID, jobID)))
	case errors.Is(err, job.ErrNotFound):
		return c.Status(fiber.StatusNotFound).
			JSON(types.ErrNotFound(err.Error()))
	default:
		logger.Errorf("failed to await job %s: %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(err.Error()))
	}
}
