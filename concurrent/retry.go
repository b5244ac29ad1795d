package concurrent

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultBaseTimeout     time.Duration = 10 * time.Millisecond
	defaultBaseExp         uint8         = 4
	defaultMaxRetryTimeout time.Duration = 10 * time.Second
	defaultAttempts        uint8         = 5
)

// DefaultOpts is the default configuration for a Retry
var DefaultOpts = RetryOpts{
	BaseTimeout:     defaultBaseTimeout,
	BaseExp:         defaultBaseExp,
	MaxRetryTimeout: defaultMaxRetryTimeout,
	Attempts:        defaultAttempts,
}

// RandomOpts is the default configuration for a Retry
// with random settings
var RandomOpts = RetryOpts{
	BaseTimeout:     defaultBaseTimeout,
	BaseExp:         defaultBaseExp,
	MaxRetryTimeout: defaultMaxRetryTimeout,
	Attempts:        defaultAttempts,
	Random:          true,
}

// RetryOpts is the configuration parameters for the Retry
// concurrent utility. Look at RetryWithOpts for more information
type RetryOpts struct {
	// Random sets the retry to wait a random time based on the
	// exponential back off
	Random bool

	// UnlimitedAttempts when set to true, Attempts will be ignored
	// and the action will be retried until it succeeds or the context
	// stops
	UnlimitedAttempts bool

	// Attempts is the maximum number of attempts allowed by a
	// Retry operation
	Attempts uint8

	// BaseExp is the base exponent for the calculation of the next
	// time an attempt must be triggered using exponential backoff
	BaseExp uint8

	// BaseTimeout is the initial timeout used after the first
	// attempt fails
	BaseTimeout time.Duration

	// MaxRetryTimeout sets an upper bound into the time that
	// the retry will wait until attempting an operation again.
	MaxRetryTimeout time.Duration
}

// RetryWithOpts is an implementation of an exponential back off
// retry operation for a supplier. It keeps retrying the operation
// until the maximum number of attempts has been reached, in which
// case it returns ErrMaxAttemptsReached, or until it succeeds.
// A supplier failing with ErrCannotRecover is not retried.
func RetryWithOpts[T any](
	ctx context.Context,
	supplier Supplier[T],
	opts RetryOpts,
) (T, error) {
	var (
		zero T
		errs []error
	)

	timeout := opts.BaseTimeout
	exp := time.Duration(max(opts.BaseExp, 1))
	maxTimeout := max(opts.MaxRetryTimeout, time.Millisecond)
	attempts := 0
	maxAttempts := int(opts.Attempts)
	timer := time.NewTimer(0)
	defer timer.Stop()

	if opts.UnlimitedAttempts {
		maxAttempts = -1
	}

	for {
		select {
		case <-ctx.Done():
			return zero, errors.Wrapf(ctx.Err(), "retry interrupted after %d attempts", attempts)

		case <-timer.C:
			v, err := supplier.Supply()
			if err == nil {
				return v, nil
			}

			var cannotRecover ErrCannotRecover
			if errors.As(err, &cannotRecover) {
				return zero, cannotRecover.Cause
			}

			errs = append(errs, err)
		}

		attempts++
		if maxAttempts >= 0 && attempts >= maxAttempts {
			return zero, ErrMaxAttemptsReached{Causes: errs}
		}

		timeout = min(max(timeout*exp, time.Millisecond), maxTimeout)
		wait := timeout
		if opts.Random {
			wait = time.Duration(rand.Int63n(int64(timeout))) + 1
		}
		timer.Reset(wait)
	}
}

// Retry is the same operation as RetryWithOpts but in this
// case the default values for RetryOpts are used
func Retry[T any](ctx context.Context, supplier Supplier[T]) (T, error) {
	return RetryWithOpts(ctx, supplier, DefaultOpts)
}

// RetryRandom is the same operation as RetryWithOpts but in this
// case the default values for RetryOpts are used with random
// exponential backoff
func RetryRandom[T any](ctx context.Context, supplier Supplier[T]) (T, error) {
	return RetryWithOpts(ctx, supplier, RandomOpts)
}
