package concurrent

import (
	"context"
	"sync"
)

// PoolInput to a pool operation
type PoolInput[T any] struct {
	// OutC if set receives the result of the supplier, otherwise
	// the result is ignored
	OutC     chan<- PoolResult[T]
	Supplier Supplier[T]
}

// PoolResult of a pool operation
type PoolResult[T any] struct {
	Result[T]
}

// PoolOpts is the configuration for a PoolRunner
type PoolOpts struct {
	// Concurrency is the number of Suppliers that the pool can
	// run in parallel at most
	Concurrency int

	// Backlog is the number of inputs that can be queued before
	// Run blocks. Defaults to Concurrency
	Backlog int
}

// PoolRunner has a fixed number of goroutines that are used to run
// an arbitrary number of tasks. A PoolRunner is a convenient way to
// execute multiple operations in parallel having control on how
// many go routines are run in the system.
type PoolRunner[T any] struct {
	opts PoolOpts
	wg   sync.WaitGroup
	ctx  context.Context

	mu      sync.RWMutex
	stopped bool

	// inC is the channel used to send operations to the PoolRunner
	inC chan PoolInput[T]
}

// NewPoolRunner creates and starts a new PoolRunner with the
// default configuration parameters
func NewPoolRunner[T any](ctx context.Context) *PoolRunner[T] {
	return NewPoolRunnerWithOpts[T](ctx, PoolOpts{
		Concurrency: defaultConcurrency,
	})
}

// NewPoolRunnerWithOpts creates a new PoolRunner with the specified
// configuration
func NewPoolRunnerWithOpts[T any](ctx context.Context, opts PoolOpts) *PoolRunner[T] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Backlog <= 0 {
		opts.Backlog = opts.Concurrency
	}

	runner := &PoolRunner[T]{
		opts: opts,
		ctx:  ctx,
		inC:  make(chan PoolInput[T], opts.Backlog),
	}

	runner.wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		go runner.run(ctx, runner.inC)
	}

	return runner
}

// Run queues input to be run by one of the goroutines of the pool.
// It blocks while the backlog is full, and fails if the context
// of the pool is done or the pool has been stopped
func (r *PoolRunner[T]) Run(input PoolInput[T]) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrNotStarted
	}

	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	case r.inC <- input:
		return nil
	}
}

// TryRun queues input like Run but fails with ErrBacklogFull instead
// of blocking when the backlog is full
func (r *PoolRunner[T]) TryRun(input PoolInput[T]) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrNotStarted
	}

	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	case r.inC <- input:
		return nil
	default:
		return ErrBacklogFull
	}
}

func (r *PoolRunner[T]) run(ctx context.Context, inC <-chan PoolInput[T]) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-inC:
			if !ok {
				return
			}

			v, err := in.Supplier.Supply()
			if in.OutC != nil {
				in.OutC <- PoolResult[T]{Result[T]{value: v, err: err}}
			}
		}
	}
}

// Stop orderly stops all the goroutines in the PoolRunner
// and returns once all the goroutines have exited. The inputs
// already queued are run before exiting, unless the context of
// the pool is done
func (r *PoolRunner[T]) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.inC)
	r.mu.Unlock()

	r.wg.Wait()
}
