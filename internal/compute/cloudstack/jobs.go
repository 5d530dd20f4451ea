package cloudstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Remote job states reported by queryAsyncJobResult
const (
	jobStatusPending   = 0
	jobStatusSucceeded = 1
	jobStatusFailed    = 2
)

// createdLayout is the timestamp format used across the API
const createdLayout = "2006-01-02T15:04:05-0700"

// asyncJobResponse is the payload of queryAsyncJobResult
type asyncJobResponse struct {
	JobID         string          `json:"jobid"`
	JobStatus     int             `json:"jobstatus"`
	JobProcStatus int             `json:"jobprocstatus"`
	JobResultCode int             `json:"jobresultcode"`
	JobResultType string          `json:"jobresulttype"`
	JobResult     json.RawMessage `json:"jobresult"`
	Cmd           string          `json:"cmd"`
	Created       string          `json:"created"`
}

// jobFailure is the jobresult of a failed job
type jobFailure struct {
	ErrorCode int    `json:"errorcode"`
	ErrorText string `json:"errortext"`
}

// Fetch implements job.StatusQuery using queryAsyncJobResult
func (c *Client) Fetch(ctx context.Context, jobID string) (*job.Record, error) {
	params := url.Values{}
	params.Set("jobid", jobID)

	var resp asyncJobResponse
	if err := c.do(ctx, "queryAsyncJobResult", params, &resp); err != nil {
		return nil, err
	}
	return resp.record(jobID), nil
}

func (r *asyncJobResponse) record(jobID string) *job.Record {
	rec := &job.Record{
		ID:       r.JobID,
		Progress: r.JobProcStatus,
		Command:  r.Cmd,
	}
	if rec.ID == "" {
		rec.ID = jobID
	}
	if r.Created != "" {
		if t, err := time.Parse(createdLayout, r.Created); err == nil {
			rec.Created = t
		} else {
			logger.Debugf("Unparseable created time %q on job %s", r.Created, jobID)
		}
	}

	switch r.JobStatus {
	case jobStatusPending:
		rec.Status = job.StatusInProgress
	case jobStatusSucceeded:
		rec.Status = job.StatusSucceeded
		rec.ResultType = r.JobResultType
		rec.Result = r.JobResult
	case jobStatusFailed:
		rec.Status = job.StatusFailed
		rec.Error = r.failure()
	default:
		logger.Debugf("Job %s reported raw status %d", jobID, r.JobStatus)
		rec.Status = job.StatusUnrecognized
	}
	return rec
}

func (r *asyncJobResponse) failure() *job.Error {
	var f jobFailure
	if len(r.JobResult) > 0 {
		if err := json.Unmarshal(r.JobResult, &f); err != nil {
			logger.Debugf("Undecodable failure detail on job %s: %v", r.JobID, err)
		}
	}
	if f.ErrorCode == 0 && f.ErrorText == "" {
		return &job.Error{
			Code: job.ErrorCodeFromInt(r.JobResultCode),
			Text: fmt.Sprintf("%s failed", r.Cmd),
		}
	}
	return &job.Error{Code: job.ErrorCodeFromInt(f.ErrorCode), Text: f.ErrorText}
}
