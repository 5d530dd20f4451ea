package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/types"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		opts       *Options
		wantErr    bool
		validateFn func(t *testing.T, client Client)
	}{
		{
			name: "nil options",
			opts: nil,
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				require.True(t, ok, "client should be an *APIClient")

				expectedDefaults := DefaultOptions()
				assert.Equal(t, expectedDefaults.BaseURL, apiClient.baseURL)
				assert.Equal(t, expectedDefaults.Timeout, apiClient.timeout)
			},
		},
		{
			name: "valid options",
			opts: &Options{
				BaseURL: "http://example.com",
				Timeout: 10 * time.Second,
			},
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				require.True(t, ok, "client should be an *APIClient")

				assert.Equal(t, "http://example.com", apiClient.baseURL)
				assert.Equal(t, 10*time.Second, apiClient.timeout)
			},
		},
		{
			name: "zero timeout falls back to default",
			opts: &Options{BaseURL: "http://example.com"},
			validateFn: func(t *testing.T, client Client) {
				assert.Equal(t, DefaultTimeout, client.(*APIClient).timeout)
			},
		},
		{
			name: "invalid base URL",
			opts: &Options{
				BaseURL: "://invalid-url",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			if tt.validateFn != nil {
				tt.validateFn(t, client)
			}
		})
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

// setupTestServer simulates the job API
func setupTestServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			writeJSON(t, w, http.StatusOK, map[string]string{"status": "healthy"})
		case "/api/v1/jobs":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "failed", r.URL.Query().Get("status"))
			writeJSON(t, w, http.StatusOK, types.ListJobsResponse{
				Slug: types.SuccessSlug,
				Jobs: []models.TrackedJob{{JobID: "job-1", Provider: models.ProviderDO, Status: models.JobStatusFailed}},
				Pagination: types.PaginationResponse{
					Total: 51, Page: 2, Limit: models.DefaultLimit, Offset: models.DefaultLimit,
				},
			})
		case "/api/v1/jobs/job-1":
			writeJSON(t, w, http.StatusOK, types.Success(models.TrackedJob{
				JobID: "job-1", Provider: models.ProviderDO, Status: models.JobStatusFailed,
			}))
		case "/api/v1/jobs/ok/await":
			assert.Equal(t, http.MethodPost, r.Method)
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			var req types.AwaitJobRequest
			assert.NoError(t, json.Unmarshal(body, &req))
			writeJSON(t, w, http.StatusOK, types.Success(types.AwaitJobResult{
				JobID: "ok", ResourceID: req.ResourceID, Provider: req.Provider, Kind: "ipaddress",
			}))
		case "/api/v1/jobs/slow/await":
			writeJSON(t, w, http.StatusGatewayTimeout, types.ErrTimeout("job slow did not complete after 10m0s"))
		case "/api/v1/jobs/broken/await":
			writeJSON(t, w, http.StatusBadGateway, types.ErrJobFailed("Job failed on the provider", &types.JobFailure{
				JobID: "broken", Code: 533, Name: "INSUFFICIENT_CAPACITY_ERROR", Text: "no capacity",
			}))
		case "/api/v1/jobs/gone/await":
			writeJSON(t, w, http.StatusNotFound, types.ErrNotFound("job gone: resource not found"))
		case "/plain-error":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Invalid request"))
		case "/invalid-json":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{invalid json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(t *testing.T, server *httptest.Server) *APIClient {
	client, err := NewClient(&Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client.(*APIClient)
}

func TestAPIClient_doRequest(t *testing.T) {
	server := setupTestServer(t)
	defer server.Close()
	apiClient := newTestClient(t, server)

	t.Run("plain error body", func(t *testing.T) {
		agent, err := apiClient.createAgent(context.Background(), http.MethodGet, "/plain-error", nil)
		require.NoError(t, err)

		err = apiClient.doRequest(agent, nil)
		var fiberErr *fiber.Error
		require.True(t, errors.As(err, &fiberErr))
		assert.Equal(t, http.StatusBadRequest, fiberErr.Code)
		assert.Equal(t, "Invalid request", fiberErr.Message)
	})

	t.Run("invalid json", func(t *testing.T) {
		agent, err := apiClient.createAgent(context.Background(), http.MethodGet, "/invalid-json", nil)
		require.NoError(t, err)

		var response map[string]interface{}
		err = apiClient.doRequest(agent, &response)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error decoding response")
	})

	t.Run("unsupported method", func(t *testing.T) {
		agent, err := apiClient.createAgent(context.Background(), "INVALID", "/test", nil)
		assert.Error(t, err)
		assert.Nil(t, agent)
	})
}

func TestAPIClient_Jobs(t *testing.T) {
	server := setupTestServer(t)
	defer server.Close()
	apiClient := newTestClient(t, server)
	ctx := context.Background()

	health, err := apiClient.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])

	list, err := apiClient.GetJobs(ctx, JobListParams{Page: 2, Status: "failed"})
	require.NoError(t, err)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, int64(51), list.Pagination.Total)

	tracked, err := apiClient.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, tracked.Status)

	_, err = apiClient.GetJob(ctx, "missing")
	var fiberErr *fiber.Error
	require.True(t, errors.As(err, &fiberErr))
	assert.Equal(t, http.StatusNotFound, fiberErr.Code)
}

func TestAPIClient_AwaitJob(t *testing.T) {
	server := setupTestServer(t)
	defer server.Close()
	apiClient := newTestClient(t, server)
	ctx := context.Background()

	res, err := apiClient.AwaitJob(ctx, "ok", types.AwaitJobRequest{Provider: models.ProviderCloudStack, ResourceID: "ip-1"})
	require.NoError(t, err)
	assert.Equal(t, "ipaddress", res.Kind)
	assert.Equal(t, "ip-1", res.ResourceID)
	assert.Equal(t, models.ProviderCloudStack, res.Provider)

	_, err = apiClient.AwaitJob(ctx, "slow", types.AwaitJobRequest{Provider: models.ProviderDO})
	assert.ErrorIs(t, err, job.ErrOperationTimedOut)
	assert.NotErrorIs(t, err, job.ErrRemoteJobFailed)

	_, err = apiClient.AwaitJob(ctx, "broken", types.AwaitJobRequest{Provider: models.ProviderDO})
	require.ErrorIs(t, err, job.ErrRemoteJobFailed)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.NotNil(t, apiErr.Failure)
	assert.Equal(t, 533, apiErr.Failure.Code)
	assert.Equal(t, "no capacity", apiErr.Failure.Text)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	_, err = apiClient.AwaitJob(ctx, "gone", types.AwaitJobRequest{Provider: models.ProviderDO})
	assert.ErrorIs(t, err, job.ErrNotFound)

	_, err = apiClient.AwaitJob(ctx, "ok", types.AwaitJobRequest{})
	assert.Error(t, err)
}
