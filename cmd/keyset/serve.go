package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eaugeas/keyset/concurrent"
	"github.com/eaugeas/keyset/config"
	"github.com/eaugeas/keyset/feed"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
	"github.com/eaugeas/keyset/rpcs"
	"github.com/eaugeas/keyset/server"
	"github.com/eaugeas/keyset/store"
)

type serveConfig struct {
	Log    config.LogConfig
	Server config.ServerConfig
	Store  config.StoreConfig
	Feed   config.FeedConfig
}

func (c *serveConfig) Use() string {
	return "serve"
}

func (c *serveConfig) EnvPrefix() string {
	return envPrefix
}

func (c *serveConfig) Binders() []config.Binder {
	return []config.Binder{&c.Log, &c.Server, &c.Store, &c.Feed}
}

func newServeCommand() (*cobra.Command, error) {
	cfg := &serveConfig{}
	cmd := &cobra.Command{
		Use:   cfg.Use(),
		Short: "Serve the sets over HTTP",
		Args:  cobra.NoArgs,
	}

	parser, err := config.GenerateForCommand(cmd, cfg)
	if err != nil {
		return nil, err
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := parser.Configure(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	}

	return cmd, nil
}

// newPublisher builds the destinations of the changes to the sets
func newPublisher(cfg config.FeedConfig, logger logs.Logger, m *metrics.Metrics) (feed.Publisher, error) {
	var publishers feed.Multi

	if cfg.Log {
		publishers = append(publishers, feed.NewLogPublisher(logger))
	}

	if cfg.KafkaEnabled() {
		kafka, err := feed.NewKafkaPublisher(feed.KafkaOpts{
			Brokers:      cfg.Brokers,
			Topic:        cfg.Topic,
			BatchTimeout: cfg.BatchTimeout,
		})
		if err != nil {
			return nil, err
		}

		// the async publisher runs on its own context so that Close
		// delivers the events queued during shutdown
		publishers = append(publishers, feed.NewAsyncPublisher(context.Background(), kafka, feed.AsyncOpts{
			Pool:    concurrent.PoolOpts{Concurrency: cfg.Concurrency, Backlog: cfg.Backlog},
			Retry:   concurrent.RandomOpts,
			Logger:  logger,
			Metrics: m,
		}))
	}

	switch len(publishers) {
	case 0:
		return feed.Nop{}, nil
	case 1:
		return publishers[0], nil
	default:
		return publishers, nil
	}
}

func serve(ctx context.Context, cfg *serveConfig) error {
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}

	m := metrics.New()
	publisher, err := newPublisher(cfg.Feed, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn(ctx, "failed to close publisher", logs.MapFields{"err": err.Error()})
		}
	}()

	st := store.New(store.Opts{
		Kind:          cfg.Store.Kind,
		Set:           cfg.Store.Set,
		CreateOnWrite: cfg.Store.CreateOnWrite,
		Backlog:       cfg.Store.Backlog,
		Logger:        logger,
		Publisher:     publisher,
		Metrics:       m,
	})

	if err := st.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer st.Stop()

	srv := server.New(server.Props{
		Store:     st,
		Metrics:   m,
		Logger:    logger,
		BodyLimit: cfg.Server.BodyLimit,
		Cors: rpcs.HttpCorsPreProcessorProps{
			Enabled:        cfg.Server.CorsEnabled,
			AllowedOrigins: cfg.Server.CorsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Content-Type", rpcs.HttpHeaderTraceID},
			ExposedHeaders: []string{rpcs.HttpHeaderTraceID},
		},
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	return srv.ListenAndServe(ctx)
}
