// Package job implements the asynchronous job completion protocol shared by
// cloud providers that answer mutating calls with a job identifier: poll the
// job until it leaves the running state, then resolve its result or surface
// the remote failure.
package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a remote job
type Status int

// Job status constants
const (
	// StatusPending indicates the job was accepted but has not started
	StatusPending Status = iota
	// StatusInProgress indicates the job is running on the provider
	StatusInProgress
	// StatusSucceeded indicates the job finished successfully
	StatusSucceeded
	// StatusFailed indicates the job finished unsuccessfully
	StatusFailed
)

// StatusUnrecognized marks a provider state with no mapping. Pollers treat it
// as still running.
const StatusUnrecognized Status = -1

var statusNames = []string{
	"pending",
	"in_progress",
	"succeeded",
	"failed",
}

// ParseStatus converts a string representation of a job status to Status
func ParseStatus(str string) (Status, error) {
	for i, name := range statusNames {
		if name == str {
			return Status(i), nil
		}
	}
	return StatusPending, fmt.Errorf("invalid job status: %s", str)
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// IsTerminal reports whether no further transitions can happen from s
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// MarshalJSON implements the json.Marshaler interface for Status
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Status
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ErrorCode is the numeric failure category a provider attaches to a failed job.
// The values follow the CloudStack async job error codes; other providers map
// onto them or use ErrorCodeUnknown.
type ErrorCode int

// Known error codes
const (
	ErrorCodeUnknown              ErrorCode = -1
	ErrorCodeInternal             ErrorCode = 530
	ErrorCodeAccount              ErrorCode = 531
	ErrorCodeAccountResourceLimit ErrorCode = 532
	ErrorCodeInsufficientCapacity ErrorCode = 533
	ErrorCodeResourceUnavailable  ErrorCode = 534
	ErrorCodeResourceAllocation   ErrorCode = 535
	ErrorCodeResourceInUse        ErrorCode = 536
	ErrorCodeNetworkRuleConflict  ErrorCode = 537
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeUnknown:              "UNKNOWN",
	ErrorCodeInternal:             "INTERNAL_ERROR",
	ErrorCodeAccount:              "ACCOUNT_ERROR",
	ErrorCodeAccountResourceLimit: "ACCOUNT_RESOURCE_LIMIT_ERROR",
	ErrorCodeInsufficientCapacity: "INSUFFICIENT_CAPACITY_ERROR",
	ErrorCodeResourceUnavailable:  "RESOURCE_UNAVAILABLE_ERROR",
	ErrorCodeResourceAllocation:   "RESOURCE_ALLOCATION_ERROR",
	ErrorCodeResourceInUse:        "RESOURCE_IN_USE_ERROR",
	ErrorCodeNetworkRuleConflict:  "NETWORK_RULE_CONFLICT_ERROR",
}

// ErrorCodeFromInt maps a raw provider code onto ErrorCode. Unrecognized
// values become ErrorCodeUnknown.
func ErrorCodeFromInt(code int) ErrorCode {
	if _, ok := errorCodeNames[ErrorCode(code)]; ok {
		return ErrorCode(code)
	}
	return ErrorCodeUnknown
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return errorCodeNames[ErrorCodeUnknown]
}

// Error is the failure detail attached to a job that ended in StatusFailed
type Error struct {
	Code ErrorCode `json:"code"`
	Text string    `json:"text"`
}

// Handle identifies a submitted asynchronous operation. A zero JobID means the
// provider had nothing to do and there is nothing to wait for.
type Handle struct {
	ResourceID string `json:"resource_id,omitempty"`
	JobID      string `json:"job_id"`
}

// Empty reports whether the handle carries no job
func (h Handle) Empty() bool {
	return h.JobID == ""
}

// Record is one snapshot of a remote job as returned by a StatusQuery.
// Error is set only when Status is StatusFailed and Result only when Status
// is StatusSucceeded.
type Record struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Progress   int             `json:"progress"`
	ResultType string          `json:"result_type,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *Error          `json:"error,omitempty"`
	Command    string          `json:"command,omitempty"`
	Created    time.Time       `json:"created,omitempty"`
}
