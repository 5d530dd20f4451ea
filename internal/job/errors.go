package job

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure kinds of the completion protocol
var (
	// ErrOperationTimedOut is returned when a job did not reach a terminal state within the wait budget
	ErrOperationTimedOut = errors.New("operation did not complete in time")
	// ErrRemoteJobFailed is returned when the provider reported the job as failed
	ErrRemoteJobFailed = errors.New("remote job failed")
	// ErrResourceAlreadyExists classifies provider errors caused by a concurrent create
	ErrResourceAlreadyExists = errors.New("resource already exists")
	// ErrPreconditionUnmet is returned before any mutation when the target scope cannot host the resource
	ErrPreconditionUnmet = errors.New("precondition unmet")
	// ErrNotConverged is returned when a create raced twice and the resource still cannot be found
	ErrNotConverged = errors.New("resource did not converge")
	// ErrNotFound classifies provider errors for missing resources
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidJobID is returned when a job id is not in the provider's format
	ErrInvalidJobID = errors.New("invalid job id")
)

// TimeoutError carries the context of a wait that ran out of budget
type TimeoutError struct {
	JobID      string
	Elapsed    time.Duration
	LastStatus Status
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete after %s (last status: %s)", e.JobID, e.Elapsed.Round(time.Millisecond), e.LastStatus)
}

// Is makes errors.Is(err, ErrOperationTimedOut) hold
func (e *TimeoutError) Is(target error) bool {
	return target == ErrOperationTimedOut
}

// RemoteJobFailedError preserves the provider's failure code and text verbatim
type RemoteJobFailedError struct {
	JobID string
	Code  ErrorCode
	Text  string
}

func (e *RemoteJobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s (%d): %s", e.JobID, e.Code, int(e.Code), e.Text)
}

// Is makes errors.Is(err, ErrRemoteJobFailed) hold
func (e *RemoteJobFailedError) Is(target error) bool {
	return target == ErrRemoteJobFailed
}

// ResultMismatchError is returned by typed extraction when the resolved result
// is of a different kind than requested. The full Result is kept so callers can
// still inspect what the provider sent.
type ResultMismatchError struct {
	JobID  string
	Want   string
	Result *Result
}

func (e *ResultMismatchError) Error() string {
	return fmt.Sprintf("job %s: expected %s result, got %s", e.JobID, e.Want, e.Result.Kind)
}
