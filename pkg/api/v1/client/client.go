// Package client provides the API client for interacting with the job API
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/types"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests. Await calls block
// server side for up to the poll budget, so it is generous.
const DefaultTimeout = 15 * time.Minute

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Job Endpoints
	GetJobs(ctx context.Context, params JobListParams) (types.ListJobsResponse, error)
	GetJob(ctx context.Context, jobID string) (models.TrackedJob, error)
	AwaitJob(ctx context.Context, jobID string, req types.AwaitJobRequest) (types.AwaitJobResult, error)
}

var _ Client = &APIClient{}

// JobListParams filters a job listing
type JobListParams struct {
	Page     int
	Status   string
	Provider string
}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// APIError is a non-success response decoded from a SlugResponse. Errors map
// back onto the job sentinels so callers can use errors.Is across the wire.
type APIError struct {
	StatusCode int
	Slug       types.Slug
	Message    string
	Failure    *types.JobFailure
}

func (e *APIError) Error() string {
	if e.Failure != nil {
		return fmt.Sprintf("%s (%d): job %s failed: %s (%d): %s",
			e.Slug, e.StatusCode, e.Failure.JobID, e.Failure.Name, e.Failure.Code, e.Failure.Text)
	}
	return fmt.Sprintf("%s (%d): %s", e.Slug, e.StatusCode, e.Message)
}

// Is maps API slugs onto the job sentinel errors
func (e *APIError) Is(target error) bool {
	switch e.Slug {
	case types.TimeoutSlug:
		return target == job.ErrOperationTimedOut
	case types.JobFailedSlug:
		return target == job.ErrRemoteJobFailed
	case types.NotFoundSlug:
		return target == job.ErrNotFound
	default:
		return false
	}
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	// Resolve the endpoint URL
	fullURL := c.baseURL + endpoint

	// Create a new agent based on the HTTP method
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodPut:
		agent = fiber.Put(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	// Set common headers
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	// Add body if provided
	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	// Execute the request
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errors.Join(errs...))
	}

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		return decodeError(statusCode, body)
	}

	// Decode the response body if a target is provided
	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// decodeError turns an error body into an *APIError. Bodies that are not a
// SlugResponse come back as a *fiber.Error carrying the raw body.
func decodeError(statusCode int, body []byte) error {
	var slug struct {
		Slug  types.Slug      `json:"slug"`
		Error string          `json:"error"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &slug); err != nil || slug.Slug == "" {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	apiErr := &APIError{StatusCode: statusCode, Slug: slug.Slug, Message: slug.Error}
	if slug.Slug == types.JobFailedSlug && len(slug.Data) > 0 {
		var failure types.JobFailure
		if err := json.Unmarshal(slug.Data, &failure); err == nil {
			apiErr.Failure = &failure
		}
	}
	return apiErr
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// Health check implementation

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	endpoint := routes.HealthCheckURL()
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return map[string]string{}, err
	}
	return response, nil
}

// Job methods implementation

// getQueryParams creates url.Values from JobListParams
func getQueryParams(params JobListParams) url.Values {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Provider != "" {
		q.Set("provider", params.Provider)
	}
	return q
}

// GetJobs lists tracked jobs
func (c *APIClient) GetJobs(ctx context.Context, params JobListParams) (types.ListJobsResponse, error) {
	endpoint := routes.GetJobsURL(getQueryParams(params))
	var response types.ListJobsResponse
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return types.ListJobsResponse{}, err
	}
	return response, nil
}

// GetJob retrieves a tracked job by its provider job id
func (c *APIClient) GetJob(ctx context.Context, jobID string) (models.TrackedJob, error) {
	endpoint := routes.GetJobURL(jobID)
	var response types.JobResponse
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return models.TrackedJob{}, err
	}
	return response.Data, nil
}

// AwaitJob blocks until the server has driven the job to completion
func (c *APIClient) AwaitJob(ctx context.Context, jobID string, req types.AwaitJobRequest) (types.AwaitJobResult, error) {
	if err := req.Validate(); err != nil {
		return types.AwaitJobResult{}, err
	}
	endpoint := routes.AwaitJobURL(jobID)
	var response types.AwaitJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, req, &response); err != nil {
		return types.AwaitJobResult{}, err
	}
	return response.Data, nil
}
