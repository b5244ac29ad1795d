// Package store keeps named ordered sets in memory. Every set is owned
// by a single goroutine that applies all the operations on it one at a
// time, so sets can be used concurrently without locks.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eaugeas/keyset/feed"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
)

var (
	// ErrSetExists is returned when creating a set with a name in use
	ErrSetExists = errors.New("set already exists")

	// ErrSetNotFound is returned when a set does not exist
	ErrSetNotFound = errors.New("set not found")

	// ErrInvalidName is returned for sets with an empty name
	ErrInvalidName = errors.New("invalid set name")

	// ErrStoreStopped is returned by the operations on a store that
	// is not running
	ErrStoreStopped = errors.New("store is not started")

	// ErrStoreStarted is returned when starting a running store
	ErrStoreStarted = errors.New("store is already started")
)

const defaultBacklog = 64

// Opts configure a Store
type Opts struct {
	// Kind of the sets created without an explicit kind
	Kind keyset.Kind

	// Set configures every set built by the store
	Set keyset.Opts

	// CreateOnWrite creates a set of the default kind when inserting
	// into a set that does not exist
	CreateOnWrite bool

	// Backlog is the number of operations that can be queued on a
	// set before the store blocks
	Backlog int

	Logger    logs.Logger
	Publisher feed.Publisher
	Metrics   *metrics.Metrics
}

// Store manages the lifetime of named sets and routes the operations
// to the goroutine that owns each set
type Store struct {
	opts      Opts
	logger    logs.Logger
	publisher feed.Publisher

	// mu serializes Start and Stop
	mu      sync.Mutex
	current atomic.Pointer[loop]
}

// loop is the state of a Start-Stop span. owners is only accessed
// from the loop goroutine
type loop struct {
	inC       chan request
	shutdownC chan struct{}
	doneC     chan struct{}
	owners    map[string]*owner
	ownerWG   sync.WaitGroup
}

// New creates a Store that must be started before use
func New(opts Opts) *Store {
	if opts.Kind == "" {
		opts.Kind = keyset.RedBlack
	}
	if opts.Backlog <= 0 {
		opts.Backlog = defaultBacklog
	}
	if opts.Logger == nil {
		opts.Logger = logs.NewLogrus(logs.LogrusLoggerProperties{Level: logrus.InfoLevel})
	}
	if opts.Publisher == nil {
		opts.Publisher = feed.Nop{}
	}

	return &Store{
		opts:      opts,
		logger:    opts.Logger.ForClass("store", "Store"),
		publisher: opts.Publisher,
	}
}

// IsStarted returns true while the store is running
func (s *Store) IsStarted() bool {
	return s.current.Load() != nil
}

// Start runs the store until Stop is called or ctx is done
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Load() != nil {
		return ErrStoreStarted
	}

	l := &loop{
		inC:       make(chan request),
		shutdownC: make(chan struct{}),
		doneC:     make(chan struct{}),
		owners:    make(map[string]*owner),
	}
	s.current.Store(l)

	go s.run(ctx, l)
	return nil
}

// Stop the store and wait until the owners of all the sets have
// applied the operations queued on them. The sets are discarded
func (s *Store) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.current.Load()
	if l == nil {
		return ErrStoreStopped
	}
	s.current.Store(nil)

	close(l.shutdownC)
	<-l.doneC
	return nil
}

func (s *Store) run(ctx context.Context, l *loop) {
	defer func() {
		for name, o := range l.owners {
			delete(l.owners, name)
			close(o.C)
		}
		l.ownerWG.Wait()
		close(l.doneC)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "store context done")
			return
		case <-l.shutdownC:
			return
		case req := <-l.inC:
			s.handleRequest(l, req)
		}
	}
}

func (s *Store) handleRequest(l *loop, req request) {
	switch req := req.(type) {
	case createRequest:
		req.Out <- s.createOwner(l, req.Context, req.Name, req.Kind)
	case dropRequest:
		s.handleDrop(l, req)
	case existsRequest:
		_, ok := l.owners[req.Name]
		req.Out <- ok
	case namesRequest:
		names := make([]string, 0, len(l.owners))
		for name := range l.owners {
			names = append(names, name)
		}
		sort.Strings(names)
		req.Out <- names
	case opRequest:
		s.handleOp(l, req)
	default:
		panic("received unexpected request")
	}
}

func (s *Store) createOwner(l *loop, ctx context.Context, name string, kind keyset.Kind) error {
	if _, ok := l.owners[name]; ok {
		return errors.Wrapf(ErrSetExists, "%q", name)
	}

	if kind == "" {
		kind = s.opts.Kind
	}

	set, err := keyset.New(kind, s.opts.Set)
	if err != nil {
		return err
	}

	o := newOwner(ownerOpts{
		Context:   ctx,
		Name:      name,
		Kind:      kind,
		Set:       set,
		Backlog:   s.opts.Backlog,
		Logger:    s.opts.Logger,
		Publisher: s.publisher,
		Metrics:   s.opts.Metrics,
	})
	l.owners[name] = o
	l.ownerWG.Add(1)
	go func() {
		defer l.ownerWG.Done()
		o.run()
	}()

	s.logger.Info(ctx, "set created", logs.MapFields{"set": name, "kind": kind.String()})
	return nil
}

func (s *Store) handleDrop(l *loop, req dropRequest) {
	o, ok := l.owners[req.Name]
	if !ok {
		req.Out <- dropResponse{Err: errors.Wrapf(ErrSetNotFound, "%q", req.Name)}
		return
	}

	delete(l.owners, req.Name)
	o.dropped = req.Context
	close(o.C)

	s.logger.Info(req.Context, "set dropped", logs.MapFields{"set": req.Name})
	req.Out <- dropResponse{DoneC: o.doneC}
}

func (s *Store) handleOp(l *loop, req opRequest) {
	o, ok := l.owners[req.Name]
	if !ok {
		if !req.Create || !s.opts.CreateOnWrite {
			req.Fail(errors.Wrapf(ErrSetNotFound, "%q", req.Name))
			return
		}

		if err := s.createOwner(l, req.Context, req.Name, ""); err != nil {
			req.Fail(err)
			return
		}
		o = l.owners[req.Name]
	}

	o.C <- req
}

// send passes req to the loop of the running store
func (s *Store) send(ctx context.Context, req request) error {
	l := s.current.Load()
	if l == nil {
		return ErrStoreStopped
	}

	select {
	case l.inC <- req:
		return nil
	case <-l.doneC:
		return ErrStoreStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receive waits for the response to a request. The channels of the
// responses are buffered, so the loop never blocks on a caller that
// gave up
func receive[T any](ctx context.Context, out <-chan T) (T, error) {
	var zero T
	select {
	case v := <-out:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create a new empty set. An empty kind selects the default kind of
// the store
func (s *Store) Create(ctx context.Context, name string, kind keyset.Kind) error {
	if name == "" {
		return ErrInvalidName
	}

	out := make(chan error, 1)
	err := s.send(ctx, createRequest{Context: ctx, Name: name, Kind: kind, Out: out})
	if err != nil {
		return err
	}

	res, err := receive(ctx, out)
	if err != nil {
		return err
	}
	return res
}

// Drop removes a set once the operations queued on it complete
func (s *Store) Drop(ctx context.Context, name string) error {
	out := make(chan dropResponse, 1)
	err := s.send(ctx, dropRequest{Context: ctx, Name: name, Out: out})
	if err != nil {
		return err
	}

	res, err := receive(ctx, out)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	select {
	case <-res.DoneC:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exists returns true if the set exists
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	out := make(chan bool, 1)
	err := s.send(ctx, existsRequest{Name: name, Out: out})
	if err != nil {
		return false, err
	}

	return receive(ctx, out)
}

// Names returns the names of all the sets sorted
func (s *Store) Names(ctx context.Context) ([]string, error) {
	out := make(chan []string, 1)
	err := s.send(ctx, namesRequest{Out: out})
	if err != nil {
		return nil, err
	}

	return receive(ctx, out)
}
