package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Default polling parameters
const (
	DefaultMaxDuration = 20 * time.Minute
	DefaultPeriod      = time.Second
	DefaultMaxPeriod   = 5 * time.Second
	DefaultMultiplier  = 1.5
)

// StatusQuery fetches the current snapshot of a remote job. Implementations
// must be read-only and retry transient transport failures themselves.
type StatusQuery interface {
	Fetch(ctx context.Context, jobID string) (*Record, error)
}

// StatusQueryFunc adapts a function to StatusQuery
type StatusQueryFunc func(ctx context.Context, jobID string) (*Record, error)

// Fetch implements StatusQuery
func (f StatusQueryFunc) Fetch(ctx context.Context, jobID string) (*Record, error) {
	return f(ctx, jobID)
}

// CompletionPredicate blocks until a job is terminal. It returns true only if
// the job succeeded, false with a nil error if it failed, and an error if it
// could not decide (timeout, cancellation, fetch failure).
type CompletionPredicate interface {
	Await(ctx context.Context, jobID string) (bool, error)
}

// PredicateFunc adapts a function to CompletionPredicate
type PredicateFunc func(ctx context.Context, jobID string) (bool, error)

// Await implements CompletionPredicate
func (f PredicateFunc) Await(ctx context.Context, jobID string) (bool, error) {
	return f(ctx, jobID)
}

// PollConfig bounds how long and how often a job is polled. Period equal to
// MaxPeriod gives fixed interval polling.
type PollConfig struct {
	MaxDuration time.Duration `json:"max_duration"`
	Period      time.Duration `json:"period"`
	MaxPeriod   time.Duration `json:"max_period"`
	Multiplier  float64       `json:"multiplier"`
	// MaxAttempts caps the number of status fetches. Zero means unbounded.
	MaxAttempts uint64 `json:"max_attempts"`
}

// DefaultPollConfig returns the polling budget used when callers pass none
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxDuration: DefaultMaxDuration,
		Period:      DefaultPeriod,
		MaxPeriod:   DefaultMaxPeriod,
		Multiplier:  DefaultMultiplier,
	}
}

// Validate validates the poll configuration
func (c PollConfig) Validate() error {
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive")
	}
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive")
	}
	if c.MaxPeriod < c.Period {
		return fmt.Errorf("max period %s is shorter than period %s", c.MaxPeriod, c.Period)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1")
	}
	return nil
}

func (c PollConfig) withDefaults() PollConfig {
	def := DefaultPollConfig()
	if c.MaxDuration <= 0 {
		c.MaxDuration = def.MaxDuration
	}
	if c.Period <= 0 {
		c.Period = def.Period
	}
	if c.MaxPeriod == 0 {
		c.MaxPeriod = def.MaxPeriod
	}
	if c.MaxPeriod < c.Period {
		c.MaxPeriod = c.Period
	}
	switch {
	case c.Multiplier == 0:
		c.Multiplier = def.Multiplier
	case c.Multiplier < 1:
		c.Multiplier = 1
	}
	return c
}

func (c PollConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.Period
	b.MaxInterval = c.MaxPeriod
	b.MaxElapsedTime = c.MaxDuration
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = 0
	b.Reset()
	switch {
	case c.MaxAttempts == 1:
		return &backoff.StopBackOff{}
	case c.MaxAttempts > 1:
		return backoff.WithMaxRetries(b, c.MaxAttempts-1)
	}
	return b
}

// errNotTerminal keeps the backoff loop going
var errNotTerminal = errors.New("job not terminal")

// Poller is the CompletionPredicate backed by a StatusQuery
type Poller struct {
	query StatusQuery
	cfg   PollConfig
}

var _ CompletionPredicate = (*Poller)(nil)

// NewPoller creates a Poller. Zero fields of cfg take their defaults.
func NewPoller(query StatusQuery, cfg PollConfig) *Poller {
	return &Poller{query: query, cfg: cfg.withDefaults()}
}

// Config returns the effective poll configuration
func (p *Poller) Config() PollConfig {
	return p.cfg
}

// Await polls jobID until it is terminal or the budget runs out. Running out
// of budget yields a *TimeoutError. Cancelling ctx stops the wait locally; the
// remote job keeps running.
func (p *Poller) Await(ctx context.Context, jobID string) (bool, error) {
	start := time.Now()
	last := StatusPending
	polls := 0

	poll := func() error {
		rec, err := p.query.Fetch(ctx, jobID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to fetch job %s: %w", jobID, err))
		}
		polls++
		last = rec.Status
		logger.DebugWithFields("polled job", map[string]interface{}{
			"job_id":   jobID,
			"status":   rec.Status.String(),
			"progress": rec.Progress,
			"poll":     polls,
		})

		switch rec.Status {
		case StatusSucceeded, StatusFailed:
			return nil
		case StatusPending, StatusInProgress:
			return errNotTerminal
		default:
			logger.Warnf("job %s reported unrecognized status %d, polling again", jobID, int(rec.Status))
			return errNotTerminal
		}
	}

	notify := func(_ error, next time.Duration) {
		logger.Debugf("job %s not complete, next poll in %s", jobID, next)
	}

	err := backoff.RetryNotify(poll, backoff.WithContext(p.cfg.backOff(), ctx), notify)
	switch {
	case err == nil:
		return last == StatusSucceeded, nil
	case errors.Is(err, errNotTerminal):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, &TimeoutError{JobID: jobID, Elapsed: time.Since(start), LastStatus: last}
	default:
		return false, err
	}
}
