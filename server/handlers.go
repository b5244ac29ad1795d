package server

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/container/interval"
	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/rpcs"
	"github.com/eaugeas/keyset/store"
)

// CreateSetRequest creates an empty set
type CreateSetRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// DropSetRequest drops a set with all its keys
type DropSetRequest struct {
	Name string `json:"name"`
}

// ListSetsResponse lists the names of the sets
type ListSetsResponse struct {
	Names []string `json:"names"`
}

// KeysRequest applies an operation to a list of keys of a set
type KeysRequest struct {
	Set  string `json:"set"`
	Keys []int  `json:"keys"`
}

// InsertKeysResponse reports the keys inserted
type InsertKeysResponse struct {
	Inserted int               `json:"inserted"`
	Results  []store.KeyResult `json:"results"`
}

// DeleteKeysResponse reports the keys deleted
type DeleteKeysResponse struct {
	Deleted int               `json:"deleted"`
	Results []store.KeyResult `json:"results"`
}

// SearchKeysResponse reports for every key whether it was found
type SearchKeysResponse struct {
	Found []bool `json:"found"`
}

// RangeRequest selects the keys of a set within [Min, Max]
type RangeRequest struct {
	Set string `json:"set"`
	Min int    `json:"min"`
	Max int    `json:"max"`
}

func (r *RangeRequest) interval() (interval.Int, error) {
	if r.Min > r.Max {
		return interval.Int{}, errors.Wrapf(interval.ErrMalformed, "min %d greater than max %d", r.Min, r.Max)
	}
	return interval.NewInt(r.Min, r.Max), nil
}

// RangeResponse holds the keys within a range
type RangeResponse struct {
	Keys []int `json:"keys"`
}

// Run of consecutive keys
type Run struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RunsResponse holds the runs of consecutive keys within a range
type RunsResponse struct {
	Runs []Run `json:"runs"`
}

// StatsRequest is read from the query of the request
type StatsRequest struct {
	Set string
}

func (r *StatsRequest) FromQuery(q url.Values) error {
	r.Set = q.Get("set")
	if r.Set == "" {
		return errors.New("query parameter set is required")
	}
	return nil
}

// toHttpError maps the errors of the store to the errors returned
// to the clients
func toHttpError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrSetNotFound):
		return rpcs.HttpNotFound(ctx, errs.New(errs.ErrorCodeSetNotFound, err.Error()))
	case errors.Is(err, store.ErrSetExists):
		return rpcs.HttpConflict(ctx, errs.New(errs.ErrorCodeSetExists, err.Error()))
	case errors.Is(err, keyset.ErrUnknownKind):
		return rpcs.HttpBadRequest(ctx, errs.New(errs.ErrorCodeUnknownKind, err.Error()))
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, interval.ErrMalformed):
		return rpcs.HttpBadRequest(ctx, errs.New(errs.ErrorCodeBadRequest, err.Error()))
	case errors.Is(err, store.ErrStoreStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return rpcs.HttpServiceUnavailable(ctx, errs.New(errs.ErrorCodeUnavailable, err.Error()))
	default:
		return err
	}
}

// handlers implement the API on top of a store
type handlers struct {
	store *store.Store
}

func (h *handlers) createSet(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*CreateSetRequest)

	kind, err := keyset.ParseKind(req.Kind)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	if req.Kind == "" {
		kind = ""
	}

	return nil, toHttpError(ctx, h.store.Create(ctx, req.Name, kind))
}

func (h *handlers) dropSet(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*DropSetRequest)
	return nil, toHttpError(ctx, h.store.Drop(ctx, req.Name))
}

func (h *handlers) listSets(ctx context.Context, v interface{}) (interface{}, error) {
	names, err := h.store.Names(ctx)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	return &ListSetsResponse{Names: names}, nil
}

func (h *handlers) insertKeys(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*KeysRequest)
	res, err := h.store.Insert(ctx, req.Set, req.Keys...)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	return &InsertKeysResponse{Inserted: res.Count, Results: res.Keys}, nil
}

func (h *handlers) deleteKeys(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*KeysRequest)
	res, err := h.store.Delete(ctx, req.Set, req.Keys...)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	return &DeleteKeysResponse{Deleted: res.Count, Results: res.Keys}, nil
}

func (h *handlers) searchKeys(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*KeysRequest)
	found, err := h.store.Search(ctx, req.Set, req.Keys...)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	return &SearchKeysResponse{Found: found}, nil
}

func (h *handlers) rangeKeys(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*RangeRequest)
	i, err := req.interval()
	if err != nil {
		return nil, toHttpError(ctx, err)
	}

	keys, err := h.store.Keys(ctx, req.Set, i)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	if keys == nil {
		keys = []int{}
	}
	return &RangeResponse{Keys: keys}, nil
}

func (h *handlers) runs(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*RangeRequest)
	i, err := req.interval()
	if err != nil {
		return nil, toHttpError(ctx, err)
	}

	runs, err := h.store.Runs(ctx, req.Set, i)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}

	res := &RunsResponse{Runs: make([]Run, 0, len(runs))}
	for _, run := range runs {
		res.Runs = append(res.Runs, Run{Min: run.Min(), Max: run.Max()})
	}
	return res, nil
}

func (h *handlers) stats(ctx context.Context, v interface{}) (interface{}, error) {
	req := v.(*StatsRequest)
	stats, err := h.store.Stats(ctx, req.Set)
	if err != nil {
		return nil, toHttpError(ctx, err)
	}
	return &stats, nil
}

func factory[T any]() rpcs.EntityFactory {
	return rpcs.EntityFactoryFunc(func() interface{} { return new(T) })
}

var noBody = rpcs.EntityFactoryFunc(func() interface{} { return nil })

// bind adds the routes of the API to binder
func (h *handlers) bind(binder *rpcs.HttpBinder) {
	binder.Bind("POST", "/sets", rpcs.HandlerFunc(h.createSet), factory[CreateSetRequest]())
	binder.Bind("DELETE", "/sets", rpcs.HandlerFunc(h.dropSet), factory[DropSetRequest]())
	binder.Bind("GET", "/sets", rpcs.HandlerFunc(h.listSets), noBody)
	binder.Bind("PUT", "/keys", rpcs.HandlerFunc(h.insertKeys), factory[KeysRequest]())
	binder.Bind("DELETE", "/keys", rpcs.HandlerFunc(h.deleteKeys), factory[KeysRequest]())
	binder.Bind("POST", "/keys/search", rpcs.HandlerFunc(h.searchKeys), factory[KeysRequest]())
	binder.Bind("POST", "/keys/range", rpcs.HandlerFunc(h.rangeKeys), factory[RangeRequest]())
	binder.Bind("POST", "/keys/runs", rpcs.HandlerFunc(h.runs), factory[RangeRequest]())
	binder.Bind("GET", "/stats", rpcs.HandlerFunc(h.stats), factory[StatsRequest]())
}
