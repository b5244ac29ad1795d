package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaugeas/keyset/keyset"
)

type testConfig struct {
	Log    LogConfig
	Server ServerConfig
	Store  StoreConfig
	Feed   FeedConfig
}

func (c *testConfig) Use() string {
	return "keyset"
}

func (c *testConfig) EnvPrefix() string {
	return "KEYSET"
}

func (c *testConfig) Binders() []Binder {
	return []Binder{&c.Log, &c.Server, &c.Store, &c.Feed}
}

func parse(t *testing.T, args ...string) (*testConfig, error) {
	config := &testConfig{}
	parser, err := Generate(config)
	require.NoError(t, err)
	return config, parser.ParseArgs(args)
}

func TestParserDefaults(t *testing.T) {
	config, err := parse(t)
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, 10*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, uint(1<<20), config.Server.BodyLimit)
	assert.False(t, config.Server.CorsEnabled)
	assert.Equal(t, []string{"*"}, config.Server.CorsOrigins)
	assert.Equal(t, keyset.RedBlack, config.Store.Kind)
	assert.Equal(t, keyset.Opts{Seed: 1}, config.Store.Set)
	assert.Equal(t, 64, config.Store.Backlog)
	assert.False(t, config.Feed.KafkaEnabled())
	assert.Equal(t, "keyset-changes", config.Feed.Topic)
	assert.Equal(t, 4, config.Feed.Concurrency)
	assert.Equal(t, 64, config.Feed.Backlog)
}

func TestParserFlags(t *testing.T) {
	config, err := parse(t,
		"--log.level=debug",
		"--log.format=json",
		"--server.addr=:9090",
		"--server.cors.enabled",
		"--server.body-limit=64KiB",
		"--server.cors.origins=http://a.example,http://b.example",
		"--store.kind=AVL",
		"--store.capacity=100",
		"--store.create-on-write",
		"--feed.kafka.brokers=localhost:9092",
	)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, uint(64<<10), config.Server.BodyLimit)
	assert.True(t, config.Server.CorsEnabled)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, config.Server.CorsOrigins)
	assert.Equal(t, keyset.AVL, config.Store.Kind)
	assert.Equal(t, 100, config.Store.Set.Capacity)
	assert.True(t, config.Store.CreateOnWrite)
	assert.True(t, config.Feed.KafkaEnabled())
	assert.Equal(t, []string{"localhost:9092"}, config.Feed.Brokers)
}

func TestParserEnvironment(t *testing.T) {
	t.Setenv("KEYSET_STORE_KIND", "btree")
	t.Setenv("KEYSET_STORE_DEGREE", "4")
	t.Setenv("KEYSET_FEED_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("KEYSET_SERVER_ADDR", ":7070")

	config, err := parse(t, "--server.addr=:6060")
	require.NoError(t, err)

	assert.Equal(t, keyset.BTree, config.Store.Kind)
	assert.Equal(t, 4, config.Store.Set.Degree)
	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Feed.Brokers)
	assert.Equal(t, ":6060", config.Server.Addr)
}

func TestParserConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
store:
  kind: treap
  seed: 42
server:
  addr: ":5050"
  read-timeout: 3s
`), 0o600))

	config, err := parse(t, "--config", path, "--server.addr=:4040")
	require.NoError(t, err)

	assert.Equal(t, logrus.WarnLevel, config.Log.Level)
	assert.Equal(t, keyset.Treap, config.Store.Kind)
	assert.Equal(t, int64(42), config.Store.Set.Seed)
	assert.Equal(t, 3*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, ":4040", config.Server.Addr)
}

func TestParserConfigFileMissing(t *testing.T) {
	_, err := parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParserInvalidValues(t *testing.T) {
	_, err := parse(t, "--store.kind=skiplist")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--store.degree=1")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--log.level=loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--log.format=xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--server.body-limit=lots")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--server.body-limit=0B")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--feed.concurrency=0")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = parse(t, "--feed.backlog=-1")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParserErrors(t *testing.T) {
	config := &testConfig{}
	parser, err := Generate(config)
	require.NoError(t, err)

	err = parser.ParseArgs([]string{"--unknown"})
	var parseErr ErrParseFlags
	assert.ErrorAs(t, err, &parseErr)

	parser, err = Generate(config)
	require.NoError(t, err)
	require.NoError(t, parser.ParseArgs(nil))
	assert.ErrorIs(t, parser.ParseArgs(nil), ErrAlreadyParsed)

	parser, err = Generate(config)
	require.NoError(t, err)
	err = parser.ParseArgs([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.False(t, errors.As(err, &parseErr))
	assert.NotNil(t, parser.Flags().Lookup("store.kind"))
}

func TestLogConfigLogger(t *testing.T) {
	config, err := parse(t, "--log.format=json")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	logger, err := config.Log.Logger(buf)
	require.NoError(t, err)

	logger.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
