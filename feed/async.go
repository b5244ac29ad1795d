package feed

import (
	"context"
	"hash/fnv"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/concurrent"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
)

const (
	defaultLanes   = 4
	defaultBacklog = 64
)

// AsyncOpts configure an AsyncPublisher
type AsyncOpts struct {
	// Pool configures the delivery lanes. Concurrency is the number
	// of lanes and Backlog the number of batches a lane can queue
	Pool concurrent.PoolOpts

	// Retry configures how a failed delivery is retried
	Retry concurrent.RetryOpts

	Logger logs.Logger

	// Metrics counts the events dropped. Optional
	Metrics *metrics.Metrics
}

// AsyncPublisher delivers events to another Publisher in the
// background. The events of a set always go through the same lane, a
// single goroutine, so they are delivered in the order they were
// published, failed deliveries being retried before the next one.
// Publish never waits on the destination: when the lane of a set is
// full its events are logged and dropped
type AsyncPublisher struct {
	ctx       context.Context
	publisher Publisher
	lanes     []*concurrent.PoolRunner[struct{}]
	retry     concurrent.RetryOpts
	logger    logs.Logger
	metrics   *metrics.Metrics
}

// NewAsyncPublisher creates an AsyncPublisher in front of publisher.
// Deliveries stop once ctx is done
func NewAsyncPublisher(ctx context.Context, publisher Publisher, opts AsyncOpts) *AsyncPublisher {
	retry := opts.Retry
	if retry.Attempts == 0 && !retry.UnlimitedAttempts {
		retry = concurrent.DefaultOpts
	}

	count := opts.Pool.Concurrency
	if count <= 0 {
		count = defaultLanes
	}
	backlog := opts.Pool.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}

	lanes := make([]*concurrent.PoolRunner[struct{}], count)
	for i := range lanes {
		lanes[i] = concurrent.NewPoolRunnerWithOpts[struct{}](ctx, concurrent.PoolOpts{
			Concurrency: 1,
			Backlog:     backlog,
		})
	}

	return &AsyncPublisher{
		ctx:       ctx,
		publisher: publisher,
		lanes:     lanes,
		retry:     retry,
		logger:    opts.Logger.ForClass("feed", "AsyncPublisher"),
		metrics:   opts.Metrics,
	}
}

func (p *AsyncPublisher) lane(set string) int {
	h := fnv.New32a()
	h.Write([]byte(set))
	return int(h.Sum32() % uint32(len(p.lanes)))
}

// Publish queues the events for delivery. It only fails when the
// publisher has been closed or its context is done
func (p *AsyncPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	batches := make(map[int][]Event)
	for _, event := range events {
		lane := p.lane(event.Set)
		batches[lane] = append(batches[lane], event)
	}

	traceID := logs.GetTraceID(ctx)
	for lane, batch := range batches {
		err := p.lanes[lane].TryRun(concurrent.PoolInput[struct{}]{
			Supplier: concurrent.SupplierFunc[struct{}](func() (struct{}, error) {
				p.deliver(logs.WithTraceID(p.ctx, traceID), batch)
				return struct{}{}, nil
			}),
		})

		switch {
		case errors.Is(err, concurrent.ErrBacklogFull):
			p.logger.Warn(ctx, "feed lane full, dropping events", logs.MapFields{
				"set":    batch[0].Set,
				"lane":   lane,
				"events": len(batch),
			})
			p.metrics.DropEvents(len(batch))
		case err != nil:
			return err
		}
	}

	return nil
}

func (p *AsyncPublisher) deliver(ctx context.Context, events []Event) {
	_, err := concurrent.RetryWithOpts[struct{}](ctx, concurrent.SupplierFunc[struct{}](
		func() (struct{}, error) {
			return struct{}{}, p.publisher.Publish(ctx, events...)
		}), p.retry)

	if err != nil {
		p.logger.Error(ctx, "failed to deliver events", logs.MapFields{
			"set":    events[0].Set,
			"events": len(events),
			"err":    err.Error(),
		})
		p.metrics.DropEvents(len(events))
	}
}

// Close waits for the queued events to be delivered and closes the
// underlying publisher
func (p *AsyncPublisher) Close() error {
	for _, lane := range p.lanes {
		lane.Stop()
	}
	return p.publisher.Close()
}
