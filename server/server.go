// Package server exposes a store over HTTP with JSON bodies.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
	"github.com/eaugeas/keyset/rpcs"
	"github.com/eaugeas/keyset/store"
)

const defaultShutdownTimeout = 10 * time.Second

// Props are the properties required to create a Server
type Props struct {
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  logs.Logger

	// BodyLimit is the maximum size in bytes of a request body
	BodyLimit uint

	Cors rpcs.HttpCorsPreProcessorProps

	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the API of a store
type Server struct {
	logger          logs.Logger
	http            *http.Server
	shutdownTimeout time.Duration
}

// NewHandler builds the handler of the API. The metrics are served
// on /metrics and every other path is routed to the API
func NewHandler(props Props) http.Handler {
	if props.Store == nil {
		panic("store must be set")
	}
	if props.Logger == nil {
		panic("logger must be set")
	}

	binder := rpcs.NewHttpBinder(rpcs.HttpBinderProperties{
		Encoder:        rpcs.JsonEncoder{},
		Logger:         props.Logger,
		HandlerFactory: rpcs.JsonHandlerFactory(props.BodyLimit, props.Logger),
	})
	if props.Cors.Enabled {
		binder.AddPreProcessor(rpcs.NewHttpCorsPreProcessor(props.Cors))
	}

	h := &handlers{store: props.Store}
	h.bind(binder)

	mux := http.NewServeMux()
	mux.Handle("/metrics", props.Metrics.Handler())
	mux.Handle("/", binder.Build())
	return mux
}

// New creates a server that is not yet listening
func New(props Props) *Server {
	shutdownTimeout := props.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		logger: props.Logger.ForClass("server", "Server"),
		http: &http.Server{
			Addr:         props.Addr,
			Handler:      NewHandler(props),
			ReadTimeout:  props.ReadTimeout,
			WriteTimeout: props.WriteTimeout,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// ListenAndServe listens on the address of the server
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.http.Addr)
	}

	return s.Serve(ctx, listener)
}

// Serve requests from listener until ctx is done, and then shut the
// server down gracefully
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errC := make(chan error, 1)
	go func() {
		errC <- s.http.Serve(listener)
	}()

	s.logger.Info(ctx, "server started", logs.MapFields{"addr": listener.Addr().String()})

	select {
	case err := <-errC:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown server")
	}

	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}
