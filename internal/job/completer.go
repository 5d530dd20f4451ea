package job

import (
	"context"
	"fmt"
	"time"

	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Recorder observes the outcome of every completion. rec is nil when the
// wait ended before a final record could be fetched.
type Recorder interface {
	Observe(ctx context.Context, h Handle, rec *Record, outcome error)
}

// Completer drives a submitted job to its typed result
type Completer struct {
	query     StatusQuery
	predicate CompletionPredicate
	resolver  *Resolver
	recorder  Recorder
}

// CompleterOption configures a Completer
type CompleterOption func(*Completer)

// WithPredicate replaces the completion predicate
func WithPredicate(p CompletionPredicate) CompleterOption {
	return func(c *Completer) {
		c.predicate = p
	}
}

// WithPollConfig polls the completer's StatusQuery with cfg
func WithPollConfig(cfg PollConfig) CompleterOption {
	return func(c *Completer) {
		c.predicate = NewPoller(c.query, cfg)
	}
}

// WithResolver replaces the result resolver
func WithResolver(r *Resolver) CompleterOption {
	return func(c *Completer) {
		c.resolver = r
	}
}

// WithRecorder attaches a Recorder
func WithRecorder(r Recorder) CompleterOption {
	return func(c *Completer) {
		c.recorder = r
	}
}

// NewCompleter creates a Completer over query. Without options it polls with
// DefaultPollConfig.
func NewCompleter(query StatusQuery, opts ...CompleterOption) *Completer {
	c := &Completer{
		query:    query,
		resolver: NewResolver(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.predicate == nil {
		c.predicate = NewPoller(query, DefaultPollConfig())
	}
	return c
}

// Complete waits for h and returns its resolved result
func (c *Completer) Complete(ctx context.Context, h Handle) (*Result, error) {
	return c.complete(ctx, h, KindNone)
}

// Wait waits for h and discards the result. An empty handle returns at once.
func (c *Completer) Wait(ctx context.Context, h Handle) error {
	_, err := c.complete(ctx, h, KindNone)
	return err
}

// AwaitAll waits for each job in turn and stops at the first failure. Empty
// ids are skipped.
func (c *Completer) AwaitAll(ctx context.Context, jobIDs ...string) error {
	for _, id := range jobIDs {
		if err := c.Wait(ctx, Handle{JobID: id}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Completer) complete(ctx context.Context, h Handle, hint ResultKind) (*Result, error) {
	if h.Empty() {
		return &Result{Kind: KindNone}, nil
	}

	start := time.Now()
	ok, err := c.predicate.Await(ctx, h.JobID)
	if err != nil {
		c.observe(ctx, h, nil, err)
		return nil, err
	}

	rec, err := c.query.Fetch(ctx, h.JobID)
	if err != nil {
		err = fmt.Errorf("failed to fetch final state of job %s: %w", h.JobID, err)
		c.observe(ctx, h, nil, err)
		return nil, err
	}

	if rec.Error != nil || rec.Status == StatusFailed {
		ferr := failure(h.JobID, rec)
		c.observe(ctx, h, rec, ferr)
		return nil, ferr
	}

	// The predicate decides completion. A record that claims success after
	// the predicate gave up is still a timeout.
	if !ok {
		terr := &TimeoutError{JobID: h.JobID, Elapsed: time.Since(start), LastStatus: rec.Status}
		c.observe(ctx, h, rec, terr)
		return nil, terr
	}

	res := c.resolver.Resolve(rec, hint)
	logger.DebugWithFields("job completed", map[string]interface{}{
		"job_id":      h.JobID,
		"resource_id": h.ResourceID,
		"kind":        res.Kind.String(),
		"elapsed":     time.Since(start).String(),
	})
	c.observe(ctx, h, rec, nil)
	return res, nil
}

func (c *Completer) observe(ctx context.Context, h Handle, rec *Record, outcome error) {
	if c.recorder == nil {
		return
	}
	c.recorder.Observe(ctx, h, rec, outcome)
}

func failure(jobID string, rec *Record) *RemoteJobFailedError {
	if rec.Error == nil {
		return &RemoteJobFailedError{JobID: jobID, Code: ErrorCodeUnknown, Text: "job failed"}
	}
	return &RemoteJobFailedError{JobID: jobID, Code: rec.Error.Code, Text: rec.Error.Text}
}

// CompleteAs waits for h and extracts its result as T. A result of another
// kind yields a *ResultMismatchError.
func CompleteAs[T any](ctx context.Context, c *Completer, h Handle) (T, error) {
	var zero T
	res, err := c.complete(ctx, h, KindOf[T]())
	if err != nil {
		return zero, err
	}
	v, ok := As[T](res)
	if !ok {
		return zero, &ResultMismatchError{JobID: h.JobID, Want: fmt.Sprintf("%T", zero), Result: res}
	}
	return v, nil
}

// Submitted is what a provider create call hands back: either the finished
// resource (Done) or a handle to wait on.
type Submitted[R any] struct {
	Handle   Handle
	Resource R
	Done     bool
}

// Finished wraps a resource the provider returned directly
func Finished[R any](r R) Submitted[R] {
	return Submitted[R]{Resource: r, Done: true}
}

// Pending wraps a job handle
func Pending[R any](h Handle) Submitted[R] {
	return Submitted[R]{Handle: h}
}

// Await returns s.Resource without polling when it is already finished and
// otherwise completes its handle.
func Await[R any](ctx context.Context, c *Completer, s Submitted[R]) (R, error) {
	if s.Done {
		return s.Resource, nil
	}
	if c == nil {
		var zero R
		return zero, fmt.Errorf("job %s needs a completer", s.Handle.JobID)
	}
	return CompleteAs[R](ctx, c, s.Handle)
}
