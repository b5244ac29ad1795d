package config

import (
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
)

// ErrInvalidConfig is returned when a configured value is out of range
var ErrInvalidConfig = errors.New("invalid configuration")

// StringList reads a list that may come from a flag, a file, or an
// environment variable with comma separated values
func StringList(v *viper.Viper, key string) []string {
	var list []string
	for _, value := range v.GetStringSlice(key) {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

// LogConfig configures the logger
type LogConfig struct {
	Level  logrus.Level
	Format string
}

func (c *LogConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("log.level", "info", "minimum level of the log entries")
	cmd.PersistentFlags().String("log.format", "text", "format of the log entries, text or json")
	return nil
}

func (c *LogConfig) Configure(v *viper.Viper) error {
	level, err := logrus.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log.level: %s", err.Error())
	}

	format := v.GetString("log.format")
	if _, err := logs.ParseFormatter(format); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log.format: %s", err.Error())
	}

	c.Level = level
	c.Format = format
	return nil
}

// Logger builds the logger described by the configuration
func (c *LogConfig) Logger(output io.Writer) (*logs.LogrusLogger, error) {
	formatter, err := logs.ParseFormatter(c.Format)
	if err != nil {
		return nil, err
	}

	return logs.NewLogrus(logs.LogrusLoggerProperties{
		Level:     c.Level,
		Output:    output,
		Formatter: formatter,
	}), nil
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    uint

	CorsEnabled bool
	CorsOrigins []string
}

func (c *ServerConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("server.addr", ":8080", "address the server listens on")
	cmd.PersistentFlags().Duration("server.read-timeout", 10*time.Second, "timeout to read a request")
	cmd.PersistentFlags().Duration("server.write-timeout", 10*time.Second, "timeout to write a response")
	cmd.PersistentFlags().String("server.body-limit", "1MiB", "maximum size of a request body, such as 64KiB or 1MB")
	cmd.PersistentFlags().Bool("server.cors.enabled", false, "handle cross origin requests")
	cmd.PersistentFlags().StringSlice("server.cors.origins", []string{"*"}, "origins allowed to make cross origin requests")
	return nil
}

func (c *ServerConfig) Configure(v *viper.Viper) error {
	c.Addr = v.GetString("server.addr")
	c.ReadTimeout = v.GetDuration("server.read-timeout")
	c.WriteTimeout = v.GetDuration("server.write-timeout")
	limit, err := humanize.ParseBytes(v.GetString("server.body-limit"))
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "server.body-limit: %s", err.Error())
	}
	c.BodyLimit = uint(limit)
	c.CorsEnabled = v.GetBool("server.cors.enabled")
	c.CorsOrigins = StringList(v, "server.cors.origins")

	if c.Addr == "" {
		return errors.Wrap(ErrInvalidConfig, "server.addr must be set")
	}
	if c.BodyLimit == 0 {
		return errors.Wrap(ErrInvalidConfig, "server.body-limit must be positive")
	}
	return nil
}

// StoreConfig configures the sets kept by the store
type StoreConfig struct {
	Kind          keyset.Kind
	Set           keyset.Opts
	CreateOnWrite bool
	Backlog       int
}

func (c *StoreConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("store.kind", string(keyset.RedBlack), "kind of the sets created without an explicit kind")
	cmd.PersistentFlags().Int("store.capacity", 0, "maximum number of keys of a set, 0 for unlimited")
	cmd.PersistentFlags().Int("store.degree", 0, "minimum degree of btree sets, 0 for the default")
	cmd.PersistentFlags().Int64("store.seed", 1, "seed of the priorities of treap sets")
	cmd.PersistentFlags().Bool("store.create-on-write", false, "create sets on the first insert")
	cmd.PersistentFlags().Int("store.backlog", 64, "operations that can be queued on a set")
	return nil
}

func (c *StoreConfig) Configure(v *viper.Viper) error {
	kind, err := keyset.ParseKind(v.GetString("store.kind"))
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "store.kind: %s", err.Error())
	}

	c.Kind = kind
	c.Set = keyset.Opts{
		Capacity: v.GetInt("store.capacity"),
		Degree:   v.GetInt("store.degree"),
		Seed:     v.GetInt64("store.seed"),
	}
	c.CreateOnWrite = v.GetBool("store.create-on-write")
	c.Backlog = v.GetInt("store.backlog")

	if c.Set.Capacity < 0 {
		return errors.Wrapf(ErrInvalidConfig, "store.capacity %d is negative", c.Set.Capacity)
	}
	if c.Set.Degree != 0 && c.Set.Degree < 2 {
		return errors.Wrapf(ErrInvalidConfig, "store.degree %d lower than 2", c.Set.Degree)
	}
	return nil
}

// FeedConfig configures where the changes to the sets are published
type FeedConfig struct {
	Log          bool
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	Concurrency  int
	Backlog      int
}

// KafkaEnabled returns true if the changes are published to kafka
func (c *FeedConfig) KafkaEnabled() bool {
	return len(c.Brokers) > 0
}

func (c *FeedConfig) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("feed.log", false, "log every change to the sets")
	cmd.PersistentFlags().StringSlice("feed.kafka.brokers", nil, "kafka brokers the changes are published to")
	cmd.PersistentFlags().String("feed.kafka.topic", "keyset-changes", "kafka topic the changes are published to")
	cmd.PersistentFlags().Duration("feed.kafka.batch-timeout", 10*time.Millisecond, "time to wait to fill a batch of messages")
	cmd.PersistentFlags().Int("feed.concurrency", 4, "goroutines that deliver the changes")
	cmd.PersistentFlags().Int("feed.backlog", 64, "batches of changes queued per goroutine before they are dropped")
	return nil
}

func (c *FeedConfig) Configure(v *viper.Viper) error {
	c.Log = v.GetBool("feed.log")
	c.Brokers = StringList(v, "feed.kafka.brokers")
	c.Topic = v.GetString("feed.kafka.topic")
	c.BatchTimeout = v.GetDuration("feed.kafka.batch-timeout")
	c.Concurrency = v.GetInt("feed.concurrency")
	c.Backlog = v.GetInt("feed.backlog")

	if c.KafkaEnabled() && c.Topic == "" {
		return errors.Wrap(ErrInvalidConfig, "feed.kafka.topic must be set")
	}
	if c.Concurrency <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "feed.concurrency %d must be positive", c.Concurrency)
	}
	if c.Backlog <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "feed.backlog %d must be positive", c.Backlog)
	}
	return nil
}
