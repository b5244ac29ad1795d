package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaugeas/keyset/config"
	"github.com/eaugeas/keyset/feed"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
)

var logger = logs.NewLogrus(logs.LogrusLoggerProperties{
	Level:  logrus.DebugLevel,
	Output: io.Discard,
})

func TestWorkloadEveryKind(t *testing.T) {
	for _, kind := range keyset.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			res, err := workload{
				kind: kind,
				flags: benchFlags{
					Keys:          200,
					Ops:           5000,
					Seed:          7,
					ValidateEvery: 50,
				},
			}.Supply()

			require.NoError(t, err)
			assert.Equal(t, 5000, res.Ops)
			assert.Equal(t, res.Inserted-res.Deleted, res.Len)
			assert.Zero(t, res.Full)
		})
	}
}

func TestWorkloadAtCapacity(t *testing.T) {
	res, err := workload{
		kind: keyset.BTree,
		flags: benchFlags{
			Keys:     1000,
			Ops:      2000,
			Seed:     3,
			Capacity: 16,
		},
	}.Supply()

	require.NoError(t, err)
	assert.LessOrEqual(t, res.Len, 16)
	assert.Positive(t, res.Full)
}

func TestRunBench(t *testing.T) {
	results, err := runBench(context.Background(), benchFlags{
		Kinds:       keyset.Kinds,
		Keys:        100,
		Ops:         1000,
		Seed:        1,
		Concurrency: 2,
	}, logger)
	require.NoError(t, err)
	require.Len(t, results, len(keyset.Kinds))

	for i, res := range results {
		assert.Equal(t, keyset.Kinds[i], res.Kind)
	}

	out := &bytes.Buffer{}
	printBench(out, results)
	assert.Contains(t, out.String(), "redblack")
	assert.Contains(t, out.String(), "unbalanced")
}

func TestBenchCommand(t *testing.T) {
	root, err := newRootCommand()
	require.NoError(t, err)

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"bench",
		"--log.level=error",
		"--bench.kinds=redblack,avl",
		"--bench.keys=50",
		"--bench.ops=500",
	})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "redblack")
	assert.Contains(t, out.String(), "avl")
	assert.NotContains(t, out.String(), "treap")
}

func TestBenchCommandInvalidKind(t *testing.T) {
	root, err := newRootCommand()
	require.NoError(t, err)

	root.SetOut(io.Discard)
	root.SetArgs([]string{"bench", "--bench.kinds=splay"})

	assert.ErrorIs(t, root.Execute(), config.ErrInvalidConfig)
}

func TestNewPublisher(t *testing.T) {
	publisher, err := newPublisher(config.FeedConfig{Concurrency: 1, Backlog: 1}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, feed.Nop{}, publisher)

	publisher, err = newPublisher(config.FeedConfig{Log: true, Concurrency: 1, Backlog: 1}, logger, nil)
	require.NoError(t, err)
	assert.IsType(t, &feed.LogPublisher{}, publisher)

	publisher, err = newPublisher(config.FeedConfig{
		Log:         true,
		Brokers:     []string{"127.0.0.1:9092"},
		Topic:       "keyset-changes",
		Concurrency: 1,
		Backlog:     1,
	}, logger, metrics.New())
	require.NoError(t, err)
	assert.IsType(t, feed.Multi{}, publisher)
	assert.NoError(t, publisher.Close())
}
