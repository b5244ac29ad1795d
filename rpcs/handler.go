package rpcs

import (
	"context"
	"net/url"
)

// Handler handles a request once its body has been decoded. The
// returned value is encoded as the body of the response, and a nil
// value results in a response without body
type Handler interface {
	Handle(ctx context.Context, v interface{}) (interface{}, error)
}

// HandlerFunc allows functions to act as a Handler
type HandlerFunc func(ctx context.Context, v interface{}) (interface{}, error)

// Handle is the implementation of Handler for HandlerFunc
func (f HandlerFunc) Handle(ctx context.Context, v interface{}) (interface{}, error) {
	return f(ctx, v)
}

// EntityFactory creates the values requests are decoded into
type EntityFactory interface {
	Create() interface{}
}

// EntityFactoryFunc allows functions to act as an EntityFactory
type EntityFactoryFunc func() interface{}

// Create is the implementation of EntityFactory for EntityFactoryFunc
func (f EntityFactoryFunc) Create() interface{} {
	return f()
}

// QueryEntity is implemented by the entities that can be read from
// the query of a request without body
type QueryEntity interface {
	FromQuery(q url.Values) error
}
