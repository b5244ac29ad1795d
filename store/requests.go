package store

import (
	"context"

	"github.com/eaugeas/keyset/keyset"
)

// request is implemented by everything the loop of a store handles
type request interface {
	isRequest()
}

type createRequest struct {
	Context context.Context
	Name    string
	Kind    keyset.Kind
	Out     chan<- error
}

type dropRequest struct {
	Context context.Context
	Name    string
	Out     chan<- dropResponse
}

type dropResponse struct {
	// DoneC is closed once the owner of the set has exited
	DoneC <-chan struct{}
	Err   error
}

type existsRequest struct {
	Name string
	Out  chan<- bool
}

type namesRequest struct {
	Out chan<- []string
}

// opRequest is forwarded by the loop to the owner of a set. Run is
// called on the goroutine of the owner, Fail when the request cannot
// reach an owner or Run panics
type opRequest struct {
	Context context.Context
	Name    string

	// Create allows the loop to create the set when the store
	// creates sets on write
	Create bool

	Run  func(o *owner)
	Fail func(err error)
}

func (createRequest) isRequest() {}
func (dropRequest) isRequest()   {}
func (existsRequest) isRequest() {}
func (namesRequest) isRequest()  {}
func (opRequest) isRequest()     {}

type outcome[T any] struct {
	value T
	err   error
}

// do runs fn on the owner of the set name and waits for its result
func do[T any](
	ctx context.Context,
	s *Store,
	name string,
	create bool,
	fn func(o *owner) (T, error),
) (T, error) {
	var zero T
	out := make(chan outcome[T], 1)

	err := s.send(ctx, opRequest{
		Context: ctx,
		Name:    name,
		Create:  create,
		Run: func(o *owner) {
			if err := ctx.Err(); err != nil {
				out <- outcome[T]{err: err}
				return
			}

			v, err := fn(o)
			out <- outcome[T]{value: v, err: err}
		},
		Fail: func(err error) {
			out <- outcome[T]{err: err}
		},
	})
	if err != nil {
		return zero, err
	}

	res, err := receive(ctx, out)
	if err != nil {
		return zero, err
	}
	return res.value, res.err
}
