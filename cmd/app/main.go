package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"freight/cmd"
	"freight/internal/adapters/out/postgres"
	"freight/internal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

const serviceName = "freightd"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Freight partial-capacity brokerage service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, websocket broadcaster and scheduled jobs",
			RunE: func(c *cobra.Command, _ []string) error {
				return withRuntime(configPath, func(cfg cmd.Config, db *gorm.DB, log *zap.Logger) error {
					return serve(c.Context(), cfg, db, log)
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(*cobra.Command, []string) error {
				return withRuntime(configPath, func(_ cmd.Config, db *gorm.DB, log *zap.Logger) error {
					if err := postgres.Migrate(db); err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
					log.Info("schema migrated")
					return nil
				})
			},
		},
	)

	return root
}

// withRuntime loads config, builds the logger and opens the database for fn.
func withRuntime(configPath string, fn func(cmd.Config, *gorm.DB, *zap.Logger) error) (err error) {
	cfg, err := cmd.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging, serviceName)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Error("open database", zap.Error(err))
		return err
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			err = multierr.Append(err, sqlDB.Close())
		}
	}()

	return fn(cfg, db, log)
}

func openDatabase(cfg cmd.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gorm_postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func serve(parent context.Context, cfg cmd.Config, db *gorm.DB, log *zap.Logger) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cmd.NewCompositionRoot(cfg, db, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, app.Close()) }()

	router, err := app.HTTPRouter()
	if err != nil {
		return err
	}

	jobManager := app.JobManager()
	if err = jobManager.StartAll(); err != nil {
		return err
	}
	defer jobManager.StopAll()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := "0.0.0.0:" + cfg.HTTP.Port
		log.Info("http server listening", zap.String("addr", addr))
		if startErr := router.Start(addr); !errors.Is(startErr, http.ErrServerClosed) {
			return startErr
		}
		return nil
	})

	g.Go(func() error {
		return app.ProgressRelay().Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return router.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
