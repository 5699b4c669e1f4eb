package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/config"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	pgstore "quizroom-service/internal/infra/postgres"
	"quizroom-service/internal/infra/rabbitmq"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/lib/slogcustom"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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
	logger := slogcustom.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	checks := make(map[string]transport.ReadinessCheck)
	var opts []app.Option
	opts = append(opts,
		app.WithLogger(logger),
		app.WithFinishedRetention(config.TTLDuration(cfg.Rooms.FinishedRetention, time.Minute)),
		app.WithPersistTimeout(config.TTLDuration(cfg.Rooms.PersistTimeout, 5*time.Second)),
	)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		checks["postgres"] = pool.Ping
	}

	loader, err := quizLoader(cfg, pool)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL, logger)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var reserver app.CodeReserver
	if redisClient != nil {
		reserver = infraredis.NewRoomCodes(redisClient, config.TTLDuration(cfg.Redis.TTL, 12*time.Hour))
	}
	opts = append(opts, app.WithRegistry(app.NewRoomRegistry(
		app.RandomCodes(cfg.Rooms.CodeLength), cfg.Rooms.CodeAttempts, reserver)))

	var results app.ResultStore = memory.NewResultStore()
	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		results = pgstore.NewResultStore(db)
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			// Publishing is best effort; rooms run without it.
			logger.Warn("rabbitmq unavailable, results will not be published", "error", err)
		} else {
			defer publisher.Close()
			opts = append(opts, app.WithPublisher(publisher))
		}
	}

	coordinator := app.NewCoordinator(quizRepo, results, app.NewDispatcher(logger), opts...)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		Coordinator: coordinator,
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AllowAnonymous),
		Logger:      logger,
		Checks:      checks,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		// Websocket writes set their own deadlines.
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 0),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz room service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		coordinator.Close()
		return err
	})
	return g.Wait()
}

// quizLoader picks where quizzes come from: Postgres, a YAML seed file, or
// the built-in demo quiz.
func quizLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuizLoader, error) {
	switch {
	case pool != nil:
		return pgstore.NewQuizLoader(pool), nil
	case cfg.Quiz.SeedFile != "":
		return memory.LoadQuizFile(cfg.Quiz.SeedFile)
	default:
		slog.Warn("no quiz source configured, serving the demo quiz only")
		return memory.NewStaticQuizLoader(sampleQuizzes()), nil
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:    "demo",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:        "q1",
					Text:      "What is 2 + 2?",
					TimeLimit: 20,
					Answers: []domain.AnswerOption{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", IsCorrect: true},
						{ID: "o3", Text: "5"},
					},
				},
				{
					ID:        "q2",
					Text:      "Which planet is closest to the sun?",
					TimeLimit: 20,
					Answers: []domain.AnswerOption{
						{ID: "o1", Text: "Mercury", IsCorrect: true},
						{ID: "o2", Text: "Venus"},
						{ID: "o3", Text: "Mars"},
					},
				},
			},
		},
	}
}
