package store

import (
	"context"
	"time"

	"github.com/eaugeas/keyset/concurrent"
	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/feed"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
)

type ownerOpts struct {
	// Context of the request that created the set
	Context   context.Context
	Name      string
	Kind      keyset.Kind
	Set       keyset.Set
	Backlog   int
	Logger    logs.Logger
	Publisher feed.Publisher
	Metrics   *metrics.Metrics
}

// owner is the only goroutine that accesses its set. Its lifetime is
// managed by the loop of the store, which is the only sender on C and
// closes C to stop it
type owner struct {
	name      string
	kind      keyset.Kind
	set       keyset.Set
	logger    logs.Logger
	publisher feed.Publisher
	metrics   *metrics.Metrics

	created context.Context

	// dropped is set by the loop before closing C when the set is
	// dropped rather than discarded on stop
	dropped context.Context

	// C is the channel the owner reads requests from
	C chan opRequest

	// doneC is closed when the owner exits
	doneC chan struct{}
}

func newOwner(opts ownerOpts) *owner {
	return &owner{
		name:      opts.Name,
		kind:      opts.Kind,
		set:       opts.Set,
		logger:    opts.Logger.ForClass("store", "owner"),
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		created:   opts.Context,
		C:         make(chan opRequest, opts.Backlog),
		doneC:     make(chan struct{}),
	}
}

func (o *owner) run() {
	defer close(o.doneC)

	o.metrics.CreateSet(o.name)
	o.publish(o.created, feed.Event{Op: feed.OpCreate, Kind: o.kind.String(), Applied: true})

	for req := range o.C {
		o.handle(req)
	}

	o.metrics.DropSet(o.name)
	if o.dropped != nil {
		o.publish(o.dropped, feed.Event{Op: feed.OpDrop, Applied: true})
	}
}

func (o *owner) handle(req opRequest) {
	defer func() {
		if r := recover(); r != nil {
			err := concurrent.ErrorFromPanic(r)
			o.logger.Error(req.Context, "operation on set panicked", logs.MapFields{
				"set": o.name,
				"err": err.Error(),
			})
			req.Fail(err)
		}
	}()

	req.Run(o)
}

func (o *owner) publish(ctx context.Context, events ...feed.Event) {
	if len(events) == 0 {
		return
	}

	now := time.Now()
	for i := range events {
		events[i].Set = o.name
		events[i].Time = now
	}

	if err := o.publisher.Publish(context.WithoutCancel(ctx), events...); err != nil {
		o.logger.Warn(ctx, "failed to publish set events", logs.MapFields{
			"set":    o.name,
			"events": len(events),
			"err":    err.Error(),
		})
	}
}

func (o *owner) observeSize() {
	o.metrics.SetSize(o.name, o.set.Len(), o.set.Height())
}

func (o *owner) insert(ctx context.Context, keys []int) Result {
	res := Result{Keys: make([]KeyResult, len(keys))}
	events := make([]feed.Event, 0, len(keys))
	failed := 0

	for i, key := range keys {
		ok, err := o.set.Insert(key)
		res.Keys[i] = KeyResult{Key: key, Applied: ok}
		if err != nil {
			res.Keys[i].Error = err.Error()
			res.Keys[i].ErrorCode = errs.ErrorCodeUnknown
			if keyset.IsCapacityExceeded(err) {
				res.Keys[i].ErrorCode = errs.ErrorCodeCapacityExceeded
			}
			failed++
			continue
		}

		if ok {
			res.Count++
		}
		events = append(events, feed.Event{Op: feed.OpInsert, Key: key, Applied: ok})
	}

	o.metrics.ObserveOp(o.name, string(feed.OpInsert), metrics.ResultApplied, res.Count)
	o.metrics.ObserveOp(o.name, string(feed.OpInsert), metrics.ResultNoop, len(keys)-res.Count-failed)
	o.metrics.ObserveOp(o.name, string(feed.OpInsert), metrics.ResultFailed, failed)
	o.observeSize()

	o.logger.Debug(ctx, "keys inserted", logs.MapFields{
		"set":      o.name,
		"keys":     len(keys),
		"inserted": res.Count,
		"failed":   failed,
	})
	o.publish(ctx, events...)
	return res
}

func (o *owner) delete(ctx context.Context, keys []int) Result {
	res := Result{Keys: make([]KeyResult, len(keys))}
	events := make([]feed.Event, 0, len(keys))

	for i, key := range keys {
		ok := o.set.Delete(key)
		res.Keys[i] = KeyResult{Key: key, Applied: ok}
		if ok {
			res.Count++
		}
		events = append(events, feed.Event{Op: feed.OpDelete, Key: key, Applied: ok})
	}

	o.metrics.ObserveOp(o.name, string(feed.OpDelete), metrics.ResultApplied, res.Count)
	o.metrics.ObserveOp(o.name, string(feed.OpDelete), metrics.ResultNoop, len(keys)-res.Count)
	o.observeSize()

	o.logger.Debug(ctx, "keys deleted", logs.MapFields{
		"set":     o.name,
		"keys":    len(keys),
		"deleted": res.Count,
	})
	o.publish(ctx, events...)
	return res
}

func (o *owner) search(keys []int) []bool {
	found := make([]bool, len(keys))
	for i, key := range keys {
		found[i] = o.set.Search(key)
	}
	return found
}

func (o *owner) stats() Stats {
	stats := Stats{
		Name:   o.name,
		Kind:   o.kind,
		Len:    o.set.Len(),
		Height: o.set.Height(),
		Valid:  true,
	}

	if err := o.set.Validate(); err != nil {
		stats.Valid = false
		stats.Error = err.Error()
	}
	return stats
}
