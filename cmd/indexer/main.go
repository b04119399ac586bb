package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shieldscope/internal/aggregate"
	"shieldscope/internal/config"
	"shieldscope/internal/indexer"
	"shieldscope/internal/metrics"
	"shieldscope/internal/store/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "shieldscope",
		Short:        "Privacy-pool event indexer and daily statistics aggregator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Run the checkpointed ingestion loops, one per network",
		RunE:  runIndex,
	}
	indexCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts per call")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(indexCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute the derived daily statistics",
		RunE:  runAggregate,
	}
	aggregateCmd.Flags().String("network", "", "limit recompute to one network")
	aggregateCmd.Flags().Duration("aggregate-interval", 0, "recompute on this interval (one-shot when zero)")
	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateNetworks(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	runners, closeClients, err := buildRunners(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeClients()

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("indexer start",
		zap.Int("networks", len(runners)),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	supervisor := indexer.NewSupervisor(runners, logger)
	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	network, _ := cmd.Flags().GetString("network")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	engine := aggregate.NewEngine(store, logger)

	if cfg.AggregateInterval > 0 {
		logger.Info("aggregate loop start", zap.Duration("interval", cfg.AggregateInterval), zap.String("network", network))
		if err := engine.RunPeriodic(ctx, network, cfg.AggregateInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	return engine.Recompute(ctx, network)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
