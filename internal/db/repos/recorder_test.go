package repos

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/job"
)

type JobRecorderTestSuite struct {
	DBRepositoryTestSuite
	recorder *JobRecorder
	fixed    time.Time
}

func TestJobRecorder(t *testing.T) {
	suite.Run(t, new(JobRecorderTestSuite))
}

func (s *JobRecorderTestSuite) SetupTest() {
	s.DBRepositoryTestSuite.SetupTest()
	s.fixed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.recorder = NewJobRecorder(s.jobRepo, models.ProviderCloudStack)
	s.recorder.now = func() time.Time { return s.fixed }
}

func (s *JobRecorderTestSuite) TestObserve() {
	vm := json.RawMessage(`{"virtualmachine":{"id":"vm-1","name":"web-1","state":"Running"}}`)

	tests := []struct {
		name       string
		handle     job.Handle
		rec        *job.Record
		outcome    error
		wantStatus models.JobStatus
		wantKind   string
		wantCode   int
		wantText   string
		completed  bool
	}{
		{
			name:       "success resolves the result kind",
			handle:     job.Handle{ResourceID: "vm-1", JobID: "job-ok"},
			rec:        &job.Record{ID: "job-ok", Status: job.StatusSucceeded, Progress: 100, Result: vm, Command: "deployVirtualMachine"},
			wantStatus: models.JobStatusSucceeded,
			wantKind:   "virtualmachine",
			completed:  true,
		},
		{
			name:       "success without payload",
			handle:     job.Handle{JobID: "job-empty"},
			rec:        &job.Record{ID: "job-empty", Status: job.StatusSucceeded},
			wantStatus: models.JobStatusSucceeded,
			wantKind:   "none",
			completed:  true,
		},
		{
			name:   "remote failure keeps code and text",
			handle: job.Handle{JobID: "job-failed"},
			rec: &job.Record{ID: "job-failed", Status: job.StatusFailed,
				Error: &job.Error{Code: job.ErrorCodeInsufficientCapacity, Text: "no capacity"}},
			outcome:    &job.RemoteJobFailedError{JobID: "job-failed", Code: job.ErrorCodeInsufficientCapacity, Text: "no capacity"},
			wantStatus: models.JobStatusFailed,
			wantCode:   533,
			wantText:   "no capacity",
			completed:  true,
		},
		{
			name:       "timeout without final record",
			handle:     job.Handle{JobID: "job-slow"},
			outcome:    &job.TimeoutError{JobID: "job-slow", Elapsed: time.Second, LastStatus: job.StatusInProgress},
			wantStatus: models.JobStatusTimedOut,
			wantText:   "job job-slow did not complete after 1s (last status: in_progress)",
		},
		{
			name:       "transport error keeps last known status",
			handle:     job.Handle{JobID: "job-broken"},
			rec:        &job.Record{ID: "job-broken", Status: job.StatusPending},
			outcome:    errors.New("connection reset"),
			wantStatus: models.JobStatusPending,
			wantText:   "connection reset",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.recorder.Observe(s.ctx, tt.handle, tt.rec, tt.outcome)

			found, err := s.jobRepo.GetByJobID(s.ctx, tt.handle.JobID)
			s.Require().NoError(err)
			s.Equal(models.ProviderCloudStack, found.Provider)
			s.Equal(tt.handle.ResourceID, found.ResourceID)
			s.Equal(tt.wantStatus, found.Status)
			s.Equal(tt.wantKind, found.ResultKind)
			s.Equal(tt.wantCode, found.ErrorCode)
			s.Equal(tt.wantText, found.ErrorText)
			s.NotEmpty(found.TraceID)
			if tt.completed {
				s.Require().NotNil(found.CompletedAt)
				s.True(found.CompletedAt.Equal(s.fixed))
			} else {
				s.Nil(found.CompletedAt)
			}
		})
	}
}

func (s *JobRecorderTestSuite) TestObserve_RepeatedObservations() {
	h := job.Handle{JobID: "job-repeat"}
	s.recorder.Observe(s.ctx, h, nil, &job.TimeoutError{JobID: "job-repeat"})
	s.recorder.Observe(s.ctx, h, &job.Record{ID: "job-repeat", Status: job.StatusSucceeded}, nil)

	found, err := s.jobRepo.GetByJobID(s.ctx, "job-repeat")
	s.Require().NoError(err)
	s.Equal(models.JobStatusSucceeded, found.Status)
	s.Equal(2, found.Observations)
	s.Empty(found.ErrorText)
}

func (s *JobRecorderTestSuite) TestObserve_LedgerFailureIsSwallowed() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	s.Require().NoError(sqlDB.Close())

	s.NotPanics(func() {
		s.recorder.Observe(s.ctx, job.Handle{JobID: "job-lost"}, nil, nil)
	})
}

func TestFromJobStatus(t *testing.T) {
	assert.Equal(t, models.JobStatusPending, fromJobStatus(job.StatusPending))
	assert.Equal(t, models.JobStatusInProgress, fromJobStatus(job.StatusInProgress))
	assert.Equal(t, models.JobStatusSucceeded, fromJobStatus(job.StatusSucceeded))
	assert.Equal(t, models.JobStatusFailed, fromJobStatus(job.StatusFailed))
	assert.Equal(t, models.JobStatusUnknown, fromJobStatus(job.StatusUnrecognized))
}
