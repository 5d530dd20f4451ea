package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/celestiaorg/cloudjob/internal/job"
)

// MockStatusQuery implements job.StatusQuery for testing
type MockStatusQuery struct {
	FetchFunc func(ctx context.Context, jobID string) (*job.Record, error)

	mu    sync.Mutex
	calls map[string]int
}

// Fetch records the call and delegates to FetchFunc
func (m *MockStatusQuery) Fetch(ctx context.Context, jobID string) (*job.Record, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[jobID]++
	m.mu.Unlock()

	if m.FetchFunc == nil {
		return nil, fmt.Errorf("no FetchFunc configured for job %s", jobID)
	}
	return m.FetchFunc(ctx, jobID)
}

// Calls returns how many times jobID was fetched
func (m *MockStatusQuery) Calls(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[jobID]
}

// NewSequenceStatusQuery returns the records in order for every job id and
// keeps returning the last one once the sequence is exhausted
func NewSequenceStatusQuery(records ...*job.Record) *MockStatusQuery {
	m := &MockStatusQuery{}
	var mu sync.Mutex
	next := 0
	m.FetchFunc = func(_ context.Context, jobID string) (*job.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(records) == 0 {
			return nil, fmt.Errorf("job %s not found", jobID)
		}
		rec := *records[next]
		if next < len(records)-1 {
			next++
		}
		rec.ID = jobID
		return &rec, nil
	}
	return m
}

// MockPredicate implements job.CompletionPredicate for testing
type MockPredicate struct {
	AwaitFunc func(ctx context.Context, jobID string) (bool, error)
}

// Await delegates to AwaitFunc and reports success when it is unset
func (m *MockPredicate) Await(ctx context.Context, jobID string) (bool, error) {
	if m.AwaitFunc == nil {
		return true, nil
	}
	return m.AwaitFunc(ctx, jobID)
}
