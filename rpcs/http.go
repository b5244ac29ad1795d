package rpcs

import (
	"bytes"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/concurrent"
	"github.com/eaugeas/keyset/logs"
)

// HttpHeaderTraceID is the header that carries the trace id of a
// request. Responses always include it
const HttpHeaderTraceID = "X-TRACE-ID"

// ParseTraceID returns the trace id in the value of the trace header,
// or a new random trace id when the value is missing or malformed
func ParseTraceID(value string) int64 {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		return id
	}

	return rand.Int63n(1<<62) + 1
}

// HttpPreProcessor processes a request before it reaches its handler.
// It returns false when it has already written the response, otherwise
// the request, possibly modified, continues to the next stage
type HttpPreProcessor interface {
	ServeHTTP(w http.ResponseWriter, req *http.Request) (bool, *http.Request)
}

// HttpPreProcessorFunc allows functions to act as an HttpPreProcessor
type HttpPreProcessorFunc func(w http.ResponseWriter, req *http.Request) (bool, *http.Request)

func (f HttpPreProcessorFunc) ServeHTTP(w http.ResponseWriter, req *http.Request) (bool, *http.Request) {
	return f(w, req)
}

// HttpMiddleware handles a request and returns the entity to encode
// in the response, or nil for responses without content
type HttpMiddleware interface {
	ServeHTTP(req *http.Request) (interface{}, error)
}

// HttpMiddlewareFunc allows functions to implement the HttpMiddleware interface
type HttpMiddlewareFunc func(req *http.Request) (interface{}, error)

func (f HttpMiddlewareFunc) ServeHTTP(req *http.Request) (interface{}, error) {
	return f(req)
}

// responder writes the outcome of a request
type responder struct {
	encoder Encoder
	logger  logs.Logger
}

func (r responder) traceID(w http.ResponseWriter, req *http.Request) {
	w.Header().Set(HttpHeaderTraceID, strconv.FormatInt(logs.GetTraceID(req.Context()), 10))
}

// success writes body with status 200, or 204 if there is no body
func (r responder) success(w http.ResponseWriter, req *http.Request, body interface{}) (int, error) {
	r.traceID(w, req)

	if body == nil {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent, nil
	}

	buf := &bytes.Buffer{}
	if err := r.encoder.Encode(buf, body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		r.logger.Warn(req.Context(), "failed to encode response", logs.MapFields{
			"path":   req.URL.EscapedPath(),
			"method": req.Method,
			"err":    err.Error(),
		})
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return http.StatusOK, err
}

// failure writes err. Errors with a cause carry a JSON body
func (r responder) failure(w http.ResponseWriter, req *http.Request, err error) (int, error) {
	httpErr := asHttpError(req.Context(), err)
	r.traceID(w, req)

	if httpErr.Cause == nil {
		w.WriteHeader(httpErr.StatusCode)
		return httpErr.StatusCode, nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.StatusCode)
	if eerr := r.encoder.Encode(w, httpErr.body()); eerr != nil {
		r.logger.Warn(req.Context(), "failed to encode error response", logs.MapFields{
			"path":   req.URL.EscapedPath(),
			"method": req.Method,
			"err":    eerr.Error(),
		}, httpErr)
		return httpErr.StatusCode, eerr
	}

	return httpErr.StatusCode, nil
}

// MethodHandlers keeps the handlers for each of the methods
type MethodHandlers map[string]HttpMiddleware

// Add a new handler to the set
func (h MethodHandlers) Add(method string, middleware HttpMiddleware) {
	h[method] = middleware
}

// HttpRoute multiplexes the handling of a request to the handler
// that expects a particular method
type HttpRoute struct {
	responder
	handlers      MethodHandlers
	preProcessors []HttpPreProcessor
}

// HttpRouteProps are the required properties to create
// a new HttpRoute instance
type HttpRouteProps struct {
	Logger        logs.Logger
	Encoder       Encoder
	Handlers      MethodHandlers
	PreProcessors []HttpPreProcessor
}

// NewHttpRoute creates a new route instance
func NewHttpRoute(props HttpRouteProps) *HttpRoute {
	return &HttpRoute{
		responder:     responder{encoder: props.Encoder, logger: props.Logger},
		handlers:      props.Handlers,
		preProcessors: props.PreProcessors,
	}
}

// HasHandler returns true if the route has a handler that
// would handle the provided method
func (h *HttpRoute) HasHandler(method string) bool {
	_, ok := h.handlers[method]
	return ok
}

// ServeHTTP runs the pre processors and then the handler of the
// request method
func (h *HttpRoute) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, preProcessor := range h.preProcessors {
		next, nextReq := preProcessor.ServeHTTP(w, req)
		if !next {
			return
		}
		req = nextReq
	}

	status, err := h.serveHTTP(w, req)
	h.logOutcome(req, status, err)
}

func (h *HttpRoute) serveHTTP(w http.ResponseWriter, req *http.Request) (int, error) {
	handler, ok := h.handlers[req.Method]
	if !ok {
		return h.failure(w, req, HttpMethodNotAllowed(req.Context(), nil))
	}

	v, err := handler.ServeHTTP(req)
	if err != nil {
		status, werr := h.failure(w, req, err)
		if werr == nil {
			werr = err
		}
		return status, werr
	}

	return h.success(w, req, v)
}

func (h *HttpRoute) logOutcome(req *http.Request, status int, err error) {
	fields := logs.MapFields{
		"path":   req.URL.Path,
		"method": req.Method,
		"status": status,
	}
	if err != nil {
		fields["err"] = err.Error()
	}

	ctx := req.Context()
	switch {
	case status >= http.StatusInternalServerError || status == 0:
		h.logger.Error(ctx, "request failed", fields)
	case status >= http.StatusBadRequest:
		h.logger.Warn(ctx, "request rejected", fields)
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		h.logger.Info(ctx, "request served", fields)
	default:
		h.logger.Debug(ctx, "request served", fields)
	}
}

// HttpRouter dispatches requests to the route bound to their path
type HttpRouter struct {
	responder
	mux map[string]*HttpRoute
}

// HasRoute returns true if the router has a route to
// handle a request to the path
func (h *HttpRouter) HasRoute(path string) bool {
	_, ok := h.mux[path]
	return ok
}

// HasHandler returns true if the router has a handle to
// handle a request to the path and method
func (h *HttpRouter) HasHandler(path, method string) bool {
	route, ok := h.mux[path]
	return ok && route.HasHandler(method)
}

// ServeHTTP attaches the trace id to the request context and serves
// the request with its route. Panics become internal server errors
func (h *HttpRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	traceID := ParseTraceID(req.Header.Get(HttpHeaderTraceID))
	req = req.WithContext(logs.WithTraceID(req.Context(), traceID))

	h.logger.Debug(req.Context(), "handle request", logs.MapFields{
		"path":   req.URL.EscapedPath(),
		"method": req.Method,
	})

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(req.Context(), "unexpected panic caught", logs.MapFields{
				"path":   req.URL.EscapedPath(),
				"method": req.Method,
				"err":    concurrent.ErrorFromPanic(r).Error(),
			})
			h.failure(w, req, errors.New("unexpected error occurred"))
		}
	}()

	route, ok := h.mux[req.URL.EscapedPath()]
	if !ok {
		h.failure(w, req, HttpNotFound(req.Context(), nil))
		return
	}

	route.ServeHTTP(w, req)
}

// HttpHandlerFactory converts an rpc Handler into HttpMiddleware
// that can be plugged into a router
type HttpHandlerFactory interface {
	Make(factory EntityFactory, handler Handler) HttpMiddleware
}

// HttpHandlerFactoryFunc to allow functions to act as an HttpHandlerFactory
type HttpHandlerFactoryFunc func(factory EntityFactory, handler Handler) HttpMiddleware

func (f HttpHandlerFactoryFunc) Make(factory EntityFactory, handler Handler) HttpMiddleware {
	return f(factory, handler)
}

// HttpBinder is the only way to build an HttpRouter, so that a router
// cannot be modified once built
type HttpBinder struct {
	handlers      map[string]MethodHandlers
	preProcessors []HttpPreProcessor
	encoder       Encoder
	logger        logs.Logger
	factory       HttpHandlerFactory
}

// Bind handler to method on uri. Request bodies are decoded into
// the entities created by factory
func (b *HttpBinder) Bind(method string, uri string, handler Handler, factory EntityFactory) {
	route, ok := b.handlers[uri]
	if !ok {
		route = make(MethodHandlers)
		b.handlers[uri] = route
	}

	route.Add(method, b.factory.Make(factory, handler))
}

// AddPreProcessor adds a pre processor to all the routes built
func (b *HttpBinder) AddPreProcessor(preProcessor HttpPreProcessor) {
	b.preProcessors = append(b.preProcessors, preProcessor)
}

// Build creates a new HttpRouter with the bound handlers and resets
// the binder
func (b *HttpBinder) Build() *HttpRouter {
	mux := make(map[string]*HttpRoute, len(b.handlers))
	for path, handlers := range b.handlers {
		mux[path] = NewHttpRoute(HttpRouteProps{
			Logger:        b.logger,
			Encoder:       b.encoder,
			Handlers:      handlers,
			PreProcessors: b.preProcessors,
		})
	}

	b.handlers = make(map[string]MethodHandlers)

	return &HttpRouter{
		responder: responder{encoder: b.encoder, logger: b.logger.ForClass("http", "router")},
		mux:       mux,
	}
}

// HttpBinderProperties are the properties used to create
// a new instance of an HttpBinder
type HttpBinderProperties struct {
	Encoder        Encoder
	Logger         logs.Logger
	HandlerFactory HttpHandlerFactory
}

// NewHttpBinder creates a new instance of the HttpBinder. It panics
// if any of the properties is missing
func NewHttpBinder(properties HttpBinderProperties) *HttpBinder {
	switch {
	case properties.Encoder == nil:
		panic("Encoder must be set")
	case properties.Logger == nil:
		panic("Logger must be set")
	case properties.HandlerFactory == nil:
		panic("HandlerFactory must be set")
	}

	return &HttpBinder{
		handlers: make(map[string]MethodHandlers),
		encoder:  properties.Encoder,
		logger:   properties.Logger,
		factory:  properties.HandlerFactory,
	}
}
