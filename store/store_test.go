package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaugeas/keyset/concurrent"
	"github.com/eaugeas/keyset/container/interval"
	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/feed"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) snapshot() []feed.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feed.Event(nil), p.events...)
}

func discardLogger() logs.Logger {
	return logs.NewLogrus(logs.LogrusLoggerProperties{
		Level:  logrus.DebugLevel,
		Output: io.Discard,
	})
}

func startStore(t *testing.T, opts Opts) *Store {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	s := New(opts)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		if s.IsStarted() {
			assert.NoError(t, s.Stop())
		}
	})
	return s
}

func TestStoreStartStop(t *testing.T) {
	s := New(Opts{Logger: discardLogger()})
	ctx := context.Background()

	assert.False(t, s.IsStarted())
	assert.ErrorIs(t, s.Stop(), ErrStoreStopped)
	assert.ErrorIs(t, s.Create(ctx, "a", ""), ErrStoreStopped)

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsStarted())
	assert.ErrorIs(t, s.Start(ctx), ErrStoreStarted)

	require.NoError(t, s.Create(ctx, "a", ""))
	require.NoError(t, s.Stop())
	assert.False(t, s.IsStarted())

	_, err := s.Insert(ctx, "a", 1)
	assert.ErrorIs(t, err, ErrStoreStopped)

	require.NoError(t, s.Start(ctx))
	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	require.NoError(t, s.Stop())
}

func TestStoreStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Opts{Logger: discardLogger()})
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Create(context.Background(), "a", ""))

	cancel()

	assert.Eventually(t, func() bool {
		_, err := s.Exists(context.Background(), "a")
		return err == ErrStoreStopped
	}, time.Second, time.Millisecond)
	assert.NoError(t, s.Stop())
}

func TestStoreCreateDrop(t *testing.T) {
	s := startStore(t, Opts{})
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "b", keyset.AVL))
	require.NoError(t, s.Create(ctx, "a", ""))

	assert.ErrorIs(t, s.Create(ctx, "a", keyset.BTree), ErrSetExists)
	assert.ErrorIs(t, s.Create(ctx, "", ""), ErrInvalidName)
	assert.ErrorIs(t, s.Create(ctx, "c", "skiplist"), keyset.ErrUnknownKind)

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	stats, err := s.Stats(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, keyset.RedBlack, stats.Kind)

	require.NoError(t, s.Drop(ctx, "a"))
	assert.ErrorIs(t, s.Drop(ctx, "a"), ErrSetNotFound)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreOperations(t *testing.T) {
	for _, kind := range keyset.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			s := startStore(t, Opts{Kind: kind})
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, "set", ""))

			res, err := s.Insert(ctx, "set", 12, 31, 20, 17, 11, 8, 3, 24, 15, 33, 20)
			require.NoError(t, err)
			assert.Equal(t, 10, res.Count)
			assert.Len(t, res.Keys, 11)
			assert.False(t, res.Keys[10].Applied)
			assert.Equal(t, 0, res.Failed())

			found, err := s.Search(ctx, "set", 20, 21)
			require.NoError(t, err)
			assert.Equal(t, []bool{true, false}, found)

			res, err = s.Delete(ctx, "set", 20, 21)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Count)
			assert.Equal(t, []KeyResult{{Key: 20, Applied: true}, {Key: 21}}, res.Keys)

			keys, err := s.Keys(ctx, "set", interval.NewInt(10, 24))
			require.NoError(t, err)
			assert.Equal(t, []int{11, 12, 15, 17, 24}, keys)

			runs, err := s.Runs(ctx, "set", interval.NewInt(0, 100))
			require.NoError(t, err)
			assert.Equal(t, []interval.Int{
				interval.NewInt(3, 3),
				interval.NewInt(8, 8),
				interval.NewInt(11, 12),
				interval.NewInt(15, 15),
				interval.NewInt(17, 17),
				interval.NewInt(24, 24),
				interval.NewInt(31, 31),
				interval.NewInt(33, 33),
			}, runs)

			stats, err := s.Stats(ctx, "set")
			require.NoError(t, err)
			assert.Equal(t, "set", stats.Name)
			assert.Equal(t, kind, stats.Kind)
			assert.Equal(t, 9, stats.Len)
			assert.True(t, stats.Valid)
			assert.Empty(t, stats.Error)

			assert.NoError(t, s.Validate(ctx, "set"))
		})
	}
}

func TestStoreSetNotFound(t *testing.T) {
	s := startStore(t, Opts{})
	ctx := context.Background()

	_, err := s.Insert(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrSetNotFound)

	_, err = s.Delete(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrSetNotFound)

	_, err = s.Search(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrSetNotFound)

	_, err = s.Stats(ctx, "missing")
	assert.ErrorIs(t, err, ErrSetNotFound)

	assert.ErrorIs(t, s.Validate(ctx, "missing"), ErrSetNotFound)
}

func TestStoreCreateOnWrite(t *testing.T) {
	s := startStore(t, Opts{Kind: keyset.Treap, CreateOnWrite: true})
	ctx := context.Background()

	res, err := s.Insert(ctx, "auto", 3, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)

	stats, err := s.Stats(ctx, "auto")
	require.NoError(t, err)
	assert.Equal(t, keyset.Treap, stats.Kind)

	_, err = s.Delete(ctx, "other", 1)
	assert.ErrorIs(t, err, ErrSetNotFound)
}

func TestStoreCapacityIsReportedPerKey(t *testing.T) {
	s := startStore(t, Opts{Set: keyset.Opts{Capacity: 2}})
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "small", ""))

	res, err := s.Insert(ctx, "small", 1, 2, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Failed())
	assert.NotEmpty(t, res.Keys[2].Error)
	assert.Equal(t, errs.ErrorCodeCapacityExceeded, res.Keys[2].ErrorCode)
	assert.Empty(t, res.Keys[3].Error)
	assert.Zero(t, res.Keys[3].ErrorCode)

	keys, err := s.Keys(ctx, "small", interval.NewInt(0, 10))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, keys)
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := startStore(t, Opts{Backlog: 4})
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "shared", ""))

	const writers = 16
	const perWriter = 200

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.Insert(ctx, "shared", w*perWriter+i)
				assert.NoError(t, err)
			}
			for i := 0; i < perWriter; i += 2 {
				_, err := s.Delete(ctx, "shared", w*perWriter+i)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	stats, err := s.Stats(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter/2, stats.Len)
	assert.True(t, stats.Valid)
}

func TestStoreDropWaitsForQueuedOperations(t *testing.T) {
	publisher := &recordingPublisher{}
	s := startStore(t, Opts{Publisher: publisher})
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a", ""))

	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = s.Insert(ctx, "a", i)
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Drop(ctx, "a"))

	events := publisher.snapshot()
	require.Len(t, events, 12)
	assert.Equal(t, feed.OpCreate, events[0].Op)
	assert.Equal(t, feed.OpDrop, events[11].Op)
}

func TestStorePublishesEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	s := startStore(t, Opts{Publisher: publisher, Set: keyset.Opts{Capacity: 1}})
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "a", keyset.BTree))
	_, err := s.Insert(ctx, "a", 5, 5, 6)
	require.NoError(t, err)
	_, err = s.Delete(ctx, "a", 5, 6)
	require.NoError(t, err)
	require.NoError(t, s.Drop(ctx, "a"))

	events := publisher.snapshot()
	for i := range events {
		assert.Equal(t, "a", events[i].Set)
		assert.False(t, events[i].Time.IsZero())
		events[i].Time = time.Time{}
	}

	assert.Equal(t, []feed.Event{
		{Set: "a", Op: feed.OpCreate, Kind: "btree", Applied: true},
		{Set: "a", Op: feed.OpInsert, Key: 5, Applied: true},
		{Set: "a", Op: feed.OpInsert, Key: 5},
		{Set: "a", Op: feed.OpDelete, Key: 5, Applied: true},
		{Set: "a", Op: feed.OpDelete, Key: 6},
		{Set: "a", Op: feed.OpDrop, Applied: true},
	}, events)
}

type stalledPublisher struct {
	release chan struct{}
}

func (p *stalledPublisher) Publish(ctx context.Context, events ...feed.Event) error {
	<-p.release
	return nil
}

func (p *stalledPublisher) Close() error {
	return nil
}

func TestStoreDoesNotWaitOnStalledFeed(t *testing.T) {
	inner := &stalledPublisher{release: make(chan struct{})}
	publisher := feed.NewAsyncPublisher(context.Background(), inner, feed.AsyncOpts{
		Pool:   concurrent.PoolOpts{Concurrency: 1, Backlog: 1},
		Logger: discardLogger(),
	})
	s := startStore(t, Opts{Publisher: publisher})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		if err := s.Create(ctx, "a", keyset.RedBlack); err != nil {
			done <- err
			return
		}
		for i := 0; i < 100; i++ {
			if _, err := s.Insert(ctx, "a", i); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("store blocked on a stalled feed")
	}

	found, err := s.Search(ctx, "a", 99)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, found)

	close(inner.release)
	require.NoError(t, s.Stop())
	require.NoError(t, publisher.Close())
}

func TestStoreRecordsMetrics(t *testing.T) {
	m := metrics.New()
	s := startStore(t, Opts{Metrics: m})
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "a", ""))
	_, err := s.Insert(ctx, "a", 1, 2, 3, 3)
	require.NoError(t, err)
	_, err = s.Delete(ctx, "a", 1)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `keyset_operations_total{op="insert",result="applied",set="a"} 3`)
	assert.Contains(t, body, `keyset_operations_total{op="insert",result="noop",set="a"} 1`)
	assert.Contains(t, body, `keyset_operations_total{op="delete",result="applied",set="a"} 1`)
	assert.Contains(t, body, `keyset_set_keys{set="a"} 2`)
	assert.Contains(t, body, "keyset_sets 1")
}

func TestStoreRecoversFromPanics(t *testing.T) {
	s := startStore(t, Opts{})
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a", ""))

	_, err := do(ctx, s, "a", false, func(o *owner) (int, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, concurrent.ErrPanic)

	res, err := s.Insert(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestStoreCancelledContext(t *testing.T) {
	s := startStore(t, Opts{})
	require.NoError(t, s.Create(context.Background(), "a", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, "a", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkStoreInsert(b *testing.B) {
	s := New(Opts{Logger: discardLogger()})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		b.Fatal(err)
	}
	defer s.Stop()

	for i := 0; i < 4; i++ {
		if err := s.Create(ctx, fmt.Sprintf("set-%d", i), ""); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := s.Insert(ctx, fmt.Sprintf("set-%d", i%4), i); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
