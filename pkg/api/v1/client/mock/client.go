// Package mock provides a function-field implementation of client.Client
package mock

import (
	"context"

	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/types"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/client"
)

var _ client.Client = (*MockClient)(nil)

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	HealthCheckFn func(ctx context.Context) (map[string]string, error)
	GetJobsFn     func(ctx context.Context, params client.JobListParams) (types.ListJobsResponse, error)
	GetJobFn      func(ctx context.Context, jobID string) (models.TrackedJob, error)
	AwaitJobFn    func(ctx context.Context, jobID string, req types.AwaitJobRequest) (types.AwaitJobResult, error)

	// Call tracking for verification
	GetJobsCalls []client.JobListParams
	GetJobCalls  []string
	AwaitJobCalls []struct {
		JobID string
		Req   types.AwaitJobRequest
	}
}

// HealthCheck implements client.Client
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return map[string]string{"status": "healthy"}, nil
}

// GetJobs implements client.Client
func (m *MockClient) GetJobs(ctx context.Context, params client.JobListParams) (types.ListJobsResponse, error) {
	m.GetJobsCalls = append(m.GetJobsCalls, params)
	if m.GetJobsFn != nil {
		return m.GetJobsFn(ctx, params)
	}
	return types.ListJobsResponse{Slug: types.SuccessSlug}, nil
}

// GetJob implements client.Client
func (m *MockClient) GetJob(ctx context.Context, jobID string) (models.TrackedJob, error) {
	m.GetJobCalls = append(m.GetJobCalls, jobID)
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, jobID)
	}
	return models.TrackedJob{JobID: jobID}, nil
}

// AwaitJob implements client.Client
func (m *MockClient) AwaitJob(ctx context.Context, jobID string, req types.AwaitJobRequest) (types.AwaitJobResult, error) {
	m.AwaitJobCalls = append(m.AwaitJobCalls, struct {
		JobID string
		Req   types.AwaitJobRequest
	}{jobID, req})
	if m.AwaitJobFn != nil {
		return m.AwaitJobFn(ctx, jobID, req)
	}
	return types.AwaitJobResult{JobID: jobID, Provider: req.Provider, Kind: "none"}, nil
}
