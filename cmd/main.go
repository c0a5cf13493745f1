package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/packages"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/upload"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		opts     config.LoadOptions
		port     string
		backend  string
		dataFile string
	)

	cmd := &cobra.Command{
		Use:           "parceltrack",
		Short:         "Package tracking HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				opts.Flags.Port = &port
			}
			if cmd.Flags().Changed("storage") {
				opts.Flags.Backend = &backend
			}
			if cmd.Flags().Changed("data-file") {
				opts.Flags.DataFile = &dataFile
			}

			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Path to a TOML config file")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", ".env", "Path to a dotenv file")
	cmd.Flags().StringVar(&port, "port", "", "HTTP port")
	cmd.Flags().StringVar(&backend, "storage", "", "Storage backend: file, memory or postgres")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "JSON file used by the file backend")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closeStore()

	images, err := upload.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.URLPrefix)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("Close event producer", zap.Error(err))
		}
	}()

	audit := server.NewAuditManager(producer, cfg.Kafka.Topic, log,
		cfg.Audit.Workers, cfg.Audit.BatchSize, cfg.Audit.FlushTimeout)
	service := packages.NewService(store, images, log)
	srv := server.New(service, audit, log, server.Options{PublicDir: cfg.HTTP.PublicDir})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(cfg.HTTP.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server gracefully stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (packages.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), func() {}, nil
	case config.BackendPostgres:
		database, err := db.NewDb(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresStorage(database, postgresql.NewPackageRepo(database))
		if err := pg.Init(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		log.Info("Using postgres storage",
			zap.String("host", cfg.Postgres.Host),
			zap.String("db", cfg.Postgres.Name))
		return pg, database.Close, nil
	default:
		log.Info("Using file storage", zap.String("path", cfg.File))
		return storage.NewFileStorage(cfg.File), func() {}, nil
	}
}
