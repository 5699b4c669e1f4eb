package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizroom-service/internal/config"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	pgstore "quizroom-service/internal/infra/postgres"
	pgmigrations "quizroom-service/internal/infra/postgres/migrations"
	infraredis "quizroom-service/internal/infra/redis"
)

// NewMigrateCmd applies database migrations and optionally seeds quizzes.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seedFile == "" {
				seedFile = cfg.Quiz.SeedFile
			}
			if seedFile == "" {
				return nil
			}
			return seedFromConfig(cmd.Context(), cfg, seedFile)
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML file of quizzes to upsert after migrating")
	return cmd
}

func openBun(url string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		slog.Info("database is up to date")
		return nil
	}
	slog.Info("migrations applied", "group", group.String())
	return nil
}

type quizSaver interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

type quizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

func seedFromConfig(ctx context.Context, cfg config.Config, path string) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	var cache quizCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = infraredis.NewQuizRepository(client, nil, 0, slog.Default())
	}
	return seedQuizzes(ctx, pgstore.NewQuizLoader(pool), cache, path)
}

// seedQuizzes upserts every quiz of a YAML file and drops stale cached
// copies so running servers pick up the new content.
func seedQuizzes(ctx context.Context, store quizSaver, cache quizCache, path string) error {
	seed, err := memory.LoadQuizFile(path)
	if err != nil {
		return err
	}
	for _, quiz := range seed.All() {
		normalized, err := quiz.Normalize()
		if err != nil {
			return err
		}
		if err := store.SaveQuiz(ctx, normalized); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				slog.Warn("invalidate cached quiz", "quiz_id", quiz.ID, "error", err)
			}
		}
		slog.Info("quiz seeded", "quiz_id", quiz.ID, "questions", len(quiz.Questions))
	}
	return nil
}
