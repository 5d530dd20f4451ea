package digitalocean

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/digitalocean/godo"

	"github.com/celestiaorg/cloudjob/internal/job"
)

// Action states
const (
	actionInProgress = godo.ActionInProgress
	actionCompleted  = godo.ActionCompleted
	actionErrored    = "errored"
)

// Actions implements job.StatusQuery over the actions endpoint. Job ids are
// the decimal action ids.
type Actions struct {
	service ActionService
}

// NewActions creates an Actions status query
func NewActions(service ActionService) *Actions {
	return &Actions{service: service}
}

// Fetch returns the current state of an action
func (a *Actions) Fetch(ctx context.Context, jobID string) (*job.Record, error) {
	id, err := strconv.Atoi(jobID)
	if err != nil {
		return nil, fmt.Errorf("action id %q: %w", jobID, job.ErrInvalidJobID)
	}

	action, _, err := a.service.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return actionRecord(jobID, action)
}

func actionRecord(jobID string, action *godo.Action) (*job.Record, error) {
	rec := &job.Record{
		ID:      jobID,
		Command: action.Type,
	}
	if action.StartedAt != nil {
		rec.Created = action.StartedAt.Time
	}

	switch action.Status {
	case actionInProgress:
		rec.Status = job.StatusInProgress
	case actionCompleted:
		rec.Status = job.StatusSucceeded
		rec.Progress = 100
		raw, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action %s: %w", jobID, err)
		}
		rec.ResultType = "action"
		rec.Result = raw
	case actionErrored:
		rec.Status = job.StatusFailed
		rec.Error = &job.Error{
			Code: job.ErrorCodeUnknown,
			Text: fmt.Sprintf("%s action on %s %d errored", action.Type, action.ResourceType, action.ResourceID),
		}
	default:
		rec.Status = job.StatusUnrecognized
	}
	return rec, nil
}
