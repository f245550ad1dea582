package cli

import (
	"context"
	"fmt"

	"dental-quest-service/internal/catalog"
	"dental-quest-service/internal/config"
	pgstore "dental-quest-service/internal/infra/postgres"
	redisstore "dental-quest-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads the built-in catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in lessons and challenges into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	defs, err := catalog.Builtin()
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgstore.NewDefinitionLoader(pool)
	for _, def := range defs {
		if err := loader.UpsertDefinition(ctx, def); err != nil {
			return err
		}
	}

	// drop stale cached copies so running servers pick up the new content
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache := redisstore.NewDefinitionRepository(client, loader, 0)
		for _, def := range defs {
			if err := cache.Invalidate(ctx, def.ID); err != nil {
				return fmt.Errorf("invalidate %s: %w", def.ID, err)
			}
		}
	}

	logger.Info("catalog seeded", zap.Int("assessments", len(defs)))
	return nil
}
