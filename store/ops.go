package store

import (
	"context"
	"slices"

	"github.com/eaugeas/keyset/container/interval"
	"github.com/eaugeas/keyset/keyset"
)

// KeyResult is the outcome of an operation on a single key
type KeyResult struct {
	Key int `json:"key"`

	// Applied is false when the operation left the set unchanged
	Applied bool `json:"applied"`

	// Error is set when the operation failed for the key, as when
	// inserting into a set at capacity
	Error string `json:"error,omitempty"`

	// ErrorCode classifies Error with the codes of the API
	ErrorCode int `json:"errorCode,omitempty"`
}

// Result of applying an operation to a list of keys
type Result struct {
	// Count of keys for which the operation was applied
	Count int         `json:"count"`
	Keys  []KeyResult `json:"keys"`
}

// Failed returns the number of keys for which the operation failed
func (r Result) Failed() int {
	failed := 0
	for _, key := range r.Keys {
		if key.Error != "" {
			failed++
		}
	}
	return failed
}

// Stats describe the state of a set
type Stats struct {
	Name   string      `json:"name"`
	Kind   keyset.Kind `json:"kind"`
	Len    int         `json:"len"`
	Height int         `json:"height"`
	Valid  bool        `json:"valid"`
	Error  string      `json:"error,omitempty"`
}

// Insert adds keys to the set in order. Keys that fail are reported
// in the result and do not stop the rest
func (s *Store) Insert(ctx context.Context, name string, keys ...int) (Result, error) {
	return do(ctx, s, name, true, func(o *owner) (Result, error) {
		return o.insert(ctx, keys), nil
	})
}

// Delete removes keys from the set
func (s *Store) Delete(ctx context.Context, name string, keys ...int) (Result, error) {
	return do(ctx, s, name, false, func(o *owner) (Result, error) {
		return o.delete(ctx, keys), nil
	})
}

// Search reports for every key whether it is in the set
func (s *Store) Search(ctx context.Context, name string, keys ...int) ([]bool, error) {
	return do(ctx, s, name, false, func(o *owner) ([]bool, error) {
		return o.search(keys), nil
	})
}

// Keys returns the keys of the set within i in ascending order
func (s *Store) Keys(ctx context.Context, name string, i interval.Int) ([]int, error) {
	return do(ctx, s, name, false, func(o *owner) ([]int, error) {
		return slices.Collect(o.set.Range(i)), nil
	})
}

// Runs returns the runs of consecutive keys of the set within i
func (s *Store) Runs(ctx context.Context, name string, i interval.Int) ([]interval.Int, error) {
	return do(ctx, s, name, false, func(o *owner) ([]interval.Int, error) {
		return keyset.Runs(o.set, i), nil
	})
}

// Stats returns the size and shape of the set
func (s *Store) Stats(ctx context.Context, name string) (Stats, error) {
	return do(ctx, s, name, false, func(o *owner) (Stats, error) {
		return o.stats(), nil
	})
}

// Validate checks the invariants of the tree backing the set
func (s *Store) Validate(ctx context.Context, name string) error {
	_, err := do(ctx, s, name, false, func(o *owner) (struct{}, error) {
		return struct{}{}, o.set.Validate()
	})
	return err
}
