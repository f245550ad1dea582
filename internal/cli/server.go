package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dental-quest-service/internal/app"
	"dental-quest-service/internal/catalog"
	"dental-quest-service/internal/config"
	"dental-quest-service/internal/infra/memory"
	pgstore "dental-quest-service/internal/infra/postgres"
	redisstore "dental-quest-service/internal/infra/redis"
	"dental-quest-service/internal/janitor"
	"dental-quest-service/internal/logging"
	"dental-quest-service/internal/metrics"
	transport "dental-quest-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL))), pgdialect.New())
		defer db.Close()
	}

	var loader memory.DefinitionLoader
	if pool != nil {
		loader = pgstore.NewDefinitionLoader(pool)
	} else {
		builtin, err := catalog.Builtin()
		if err != nil {
			return err
		}
		loader = memory.NewStaticDefinitionLoader(catalog.ByID(builtin))
	}

	defTTL := config.TTLDuration(cfg.Assessment.DefinitionTTL, 10*time.Minute)
	var defs app.DefinitionRepository
	if redisClient != nil {
		defs = redisstore.NewDefinitionRepository(redisClient, loader, defTTL)
	} else {
		defs = memory.NewDefinitionRepository(loader, defTTL)
	}

	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisstore.NewAttemptStore(redisClient, redisTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	var progress app.ProgressStore
	if db != nil {
		progress = pgstore.NewProgressStore(db)
	} else {
		progress = memory.NewProgressStore()
	}

	m := metrics.New()
	service := app.NewAssessmentService(defs, attempts, progress, app.Config{
		Achievements: cfg.Achievements,
		Retry: app.RetryConfig{
			InitialInterval: config.TTLDuration(cfg.Assessment.PersistRetry.InitialInterval, 200*time.Millisecond),
			MaxInterval:     config.TTLDuration(cfg.Assessment.PersistRetry.MaxInterval, 2*time.Second),
			MaxElapsedTime:  config.TTLDuration(cfg.Assessment.PersistRetry.MaxElapsed, 10*time.Second),
		},
		PersistTimeout: config.TTLDuration(cfg.Assessment.PersistTimeout, 30*time.Second),
		Recorder:       m,
		Logger:         logger,
	})

	sweeper := janitor.New(service, config.TTLDuration(cfg.Assessment.Retention, 10*time.Minute), logger)
	if err := sweeper.Start(config.TTLDuration(cfg.Assessment.SweepInterval, time.Minute)); err != nil {
		return err
	}
	defer sweeper.Stop()

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(service, transport.RouterOptions{
			Metrics:     m,
			Logger:      logger,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting assessment service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// let in-flight result write-backs land before the stores close
		if err := service.Wait(shutdownCtx); err != nil {
			logger.Warn("pending progress writes abandoned", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}
