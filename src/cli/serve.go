package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"order-matching-engine/src/api"
	"order-matching-engine/src/config"
	"order-matching-engine/src/engine"
	"order-matching-engine/src/feed"
	"order-matching-engine/src/logger"
)

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and trade feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.LogLevel)))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	eng := engine.NewMatchingEngine(engine.WithLogger(log))
	for _, s := range cfg.Symbols {
		if err := eng.AddOrderBook(s); err != nil {
			return errors.Wrapf(err, "create book %q", s)
		}
	}

	hub := feed.NewHub(log)
	eng.Subscribe(feed.NewLogObserver(log))
	eng.Subscribe(hub)
	closers := []io.Closer{hub}
	opts := []api.Option{api.WithLogger(log), api.WithHub(hub)}

	if cfg.MetricsEnabled {
		m := feed.NewMetrics()
		eng.Subscribe(m)
		opts = append(opts, api.WithMetrics(m))
	}
	if cfg.Kafka.Enabled {
		p := feed.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		eng.Subscribe(p)
		closers = append(closers, p)
		log.Info("publishing trades to kafka",
			logger.NewField("brokers", cfg.Kafka.Brokers),
			logger.NewField("topic", cfg.Kafka.Topic),
		)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.NewServer(eng, opts...)}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", logger.NewField("addr", cfg.HTTPAddr), logger.NewField("symbols", eng.Symbols()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return multierr.Append(errors.Wrap(err, "serve http"), feed.Close(closers...))
		}
		return feed.Close(closers...)
	case <-ctx.Done():
	}

	log.Info("shutting down", logger.NewField("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = multierr.Append(errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown http"), feed.Close(closers...))
	if err != nil {
		log.Error(err)
	}
	return err
}
