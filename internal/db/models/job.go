package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	// JobCreatedAtField is the database field name for the row creation timestamp
	JobCreatedAtField = "created_at"
	// JobIDField is the database field name for the provider job id
	JobIDField = "job_id"
)

// JobStatus represents the last known state of a tracked job
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusPending indicates the job was accepted but has not started
	JobStatusPending
	// JobStatusInProgress indicates the job was still running when last observed
	JobStatusInProgress
	// JobStatusSucceeded indicates the job finished successfully
	JobStatusSucceeded
	// JobStatusFailed indicates the job finished unsuccessfully
	JobStatusFailed
	// JobStatusTimedOut indicates the wait gave up before the job finished
	JobStatusTimedOut
)

var jobStatusNames = []string{
	"unknown",
	"pending",
	"in_progress",
	"succeeded",
	"failed",
	"timed_out",
}

// TrackedJob is the ledger entry of one remote job
type TrackedJob struct {
	gorm.Model
	JobID        string          `json:"job_id" gorm:"not null;uniqueIndex"`
	ResourceID   string          `json:"resource_id,omitempty" gorm:"index"`
	Provider     ProviderID      `json:"provider" gorm:"not null;index"`
	Status       JobStatus       `json:"status" gorm:"index"`
	Progress     int             `json:"progress"`
	Command      string          `json:"command,omitempty"`
	ResultKind   string          `json:"result_kind,omitempty"`
	Result       json.RawMessage `json:"result,omitempty" gorm:"type:jsonb"`
	ErrorCode    int             `json:"error_code,omitempty"`
	ErrorText    string          `json:"error_text,omitempty" gorm:"type:text"`
	Observations int             `json:"observations" gorm:"not null;default:1"`
	TraceID      string          `json:"trace_id" gorm:"index"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job will not change any more
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}

	return JobStatus(0), fmt.Errorf("invalid job status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}
