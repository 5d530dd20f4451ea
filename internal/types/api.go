// Package types holds the provider resource shapes decoded from job results
// and the payloads of the HTTP API
package types

import (
	"fmt"

	"github.com/celestiaorg/cloudjob/internal/db/models"
)

// Slug is a type for the slug field in the response
// It is mainly used for the client to understand the type of the response
type Slug string

// nolint:gochecknoglobals
const (
	SuccessSlug      Slug = "success"
	ErrorSlug        Slug = "error"
	InvalidInputSlug Slug = "invalid-input"
	NotFoundSlug     Slug = "not-found"
	ServerErrorSlug  Slug = "server-error"
	TimeoutSlug      Slug = "timeout"
	JobFailedSlug    Slug = "job-failed"
)

// SlugResponse is the response type for the API
type SlugResponse struct {
	Slug  Slug        `json:"slug"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrInvalidInput returns a SlugResponse with the InvalidInputSlug and the error message
func ErrInvalidInput(msg string) SlugResponse {
	return SlugResponse{
		Slug:  InvalidInputSlug,
		Error: msg,
	}
}

// ErrNotFound returns a SlugResponse with the NotFoundSlug and the error message
func ErrNotFound(msg string) SlugResponse {
	return SlugResponse{
		Slug:  NotFoundSlug,
		Error: msg,
	}
}

// ErrServer returns a SlugResponse with the ServerErrorSlug and the error message
func ErrServer(msg string) SlugResponse {
	return SlugResponse{
		Slug:  ServerErrorSlug,
		Error: msg,
	}
}

// ErrTimeout returns a SlugResponse with the TimeoutSlug and the error message
func ErrTimeout(msg string) SlugResponse {
	return SlugResponse{
		Slug:  TimeoutSlug,
		Error: msg,
	}
}

// ErrJobFailed returns a SlugResponse with the JobFailedSlug. data carries the
// provider's failure code and text.
func ErrJobFailed(msg string, data *JobFailure) SlugResponse {
	return SlugResponse{
		Slug:  JobFailedSlug,
		Error: msg,
		Data:  data,
	}
}

// Success returns a SlugResponse with the SuccessSlug and the data
func Success(data interface{}) SlugResponse {
	return SlugResponse{
		Slug: SuccessSlug,
		Data: data,
	}
}

// PaginationResponse describes the page returned by a list call
type PaginationResponse struct {
	Total  int64 `json:"total"`
	Page   int   `json:"page"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ListJobsResponse is the response of the job listing endpoint
type ListJobsResponse struct {
	Slug       Slug                `json:"slug"`
	Jobs       []models.TrackedJob `json:"jobs"`
	Pagination PaginationResponse  `json:"pagination"`
}

// JobResponse wraps a single tracked job
type JobResponse struct {
	Slug Slug              `json:"slug"`
	Data models.TrackedJob `json:"data"`
}

// AwaitJobRequest asks the server to wait for a provider job
type AwaitJobRequest struct {
	Provider   models.ProviderID `json:"provider"`
	ResourceID string            `json:"resource_id,omitempty"`
}

// Validate validates the await request
func (r *AwaitJobRequest) Validate() error {
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !r.Provider.IsValid() {
		return fmt.Errorf("unsupported provider: %s", r.Provider)
	}
	return nil
}

// AwaitJobResult is the resolved outcome of an awaited job
type AwaitJobResult struct {
	JobID      string            `json:"job_id"`
	ResourceID string            `json:"resource_id,omitempty"`
	Provider   models.ProviderID `json:"provider"`
	Kind       string            `json:"kind"`
	Result     interface{}       `json:"result,omitempty"`
}

// AwaitJobResponse wraps AwaitJobResult
type AwaitJobResponse struct {
	Slug Slug           `json:"slug"`
	Data AwaitJobResult `json:"data"`
}

// JobFailure carries the failure detail of a remote job
type JobFailure struct {
	JobID string `json:"job_id"`
	Code  int    `json:"code"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}
