package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Unmet builds an error wrapping ErrPreconditionUnmet
func Unmet(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPreconditionUnmet, fmt.Sprintf(format, args...))
}

// Ensurer creates a resource only if no equivalent one exists. Find is run
// first; a hit is reused. Otherwise Create is called and, when it fails
// because a concurrent caller won the race, Find is run exactly once more.
type Ensurer[R any] struct {
	// Name identifies the resource in logs and errors
	Name string
	// Precondition runs before any mutating call. Optional.
	Precondition func(ctx context.Context) error
	Find         func(ctx context.Context) (R, bool, error)
	Create       func(ctx context.Context) (Submitted[R], error)
	// Reconcile applies follow-up mutations to a reused or created resource. Optional.
	Reconcile func(ctx context.Context, r R) (R, error)
	// IsAlreadyExists classifies Create errors. Defaults to errors.Is(err, ErrResourceAlreadyExists).
	IsAlreadyExists func(err error) bool
	Completer       *Completer
}

// Ensure returns the existing or newly created resource
func (e *Ensurer[R]) Ensure(ctx context.Context) (R, error) {
	var zero R
	if e.Precondition != nil {
		if err := e.Precondition(ctx); err != nil {
			return zero, err
		}
	}

	existing, found, err := e.Find(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to look up %s: %w", e.Name, err)
	}
	if found {
		logger.Debugf("Reusing existing %s", e.Name)
		return e.reconcile(ctx, existing)
	}

	sub, err := e.Create(ctx)
	if err != nil {
		if !e.alreadyExists(err) {
			return zero, err
		}
		logger.Infof("%s was created concurrently, fetching it", e.Name)
		existing, found, ferr := e.Find(ctx)
		if ferr != nil {
			return zero, fmt.Errorf("failed to look up %s after create race: %w", e.Name, ferr)
		}
		if !found {
			return zero, fmt.Errorf("%s: %w: %w", e.Name, ErrNotConverged, err)
		}
		return e.reconcile(ctx, existing)
	}

	created, err := Await(ctx, e.Completer, sub)
	if err != nil {
		return zero, err
	}
	return e.reconcile(ctx, created)
}

func (e *Ensurer[R]) alreadyExists(err error) bool {
	if e.IsAlreadyExists != nil {
		return e.IsAlreadyExists(err)
	}
	return errors.Is(err, ErrResourceAlreadyExists)
}

func (e *Ensurer[R]) reconcile(ctx context.Context, r R) (R, error) {
	if e.Reconcile == nil {
		return r, nil
	}
	return e.Reconcile(ctx, r)
}

// Obtainer reuses an allocated resource when one is listed and allocates a
// new one otherwise. When several candidates are listed the first one in the
// provider's order is returned.
type Obtainer[R any] struct {
	Name         string
	Precondition func(ctx context.Context) error
	List         func(ctx context.Context) ([]R, error)
	Allocate     func(ctx context.Context) (Submitted[R], error)
	Completer    *Completer
}

// Obtain returns a reused or freshly allocated resource
func (o *Obtainer[R]) Obtain(ctx context.Context) (R, error) {
	var zero R
	if o.Precondition != nil {
		if err := o.Precondition(ctx); err != nil {
			return zero, err
		}
	}

	candidates, err := o.List(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to list %s: %w", o.Name, err)
	}
	if len(candidates) > 0 {
		if len(candidates) > 1 {
			logger.Debugf("%d reusable %s found, taking the first", len(candidates), o.Name)
		}
		return candidates[0], nil
	}

	sub, err := o.Allocate(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to allocate %s: %w", o.Name, err)
	}
	return Await(ctx, o.Completer, sub)
}
