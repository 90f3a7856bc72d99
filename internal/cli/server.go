package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"brainbolt/internal/app"
	"brainbolt/internal/cache"
	"brainbolt/internal/config"
	"brainbolt/internal/infra/memory"
	pgstore "brainbolt/internal/infra/postgres"
	redisboard "brainbolt/internal/infra/redis"
	"brainbolt/internal/integrity"
	"brainbolt/internal/seed"
	transport "brainbolt/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store app.Store = memory.NewStore()
	if pool != nil {
		store = pgstore.NewStore(pool)
	}

	// The leaderboard projection prefers Redis so every instance ranks
	// against the same boards; SQL and in-memory are the fallbacks.
	var boards app.Leaderboard = memory.NewLeaderboard()
	if redisClient != nil {
		boards = redisboard.NewLeaderboard(redisClient)
	} else if pool != nil {
		boards = pgstore.NewLeaderboard(pool)
	}

	caches := cache.NewLayers(cache.Config{
		UserStateTTL:    config.TTLDuration(cfg.Cache.UserStateTTL, cache.DefaultUserStateTTL),
		QuestionPoolTTL: config.TTLDuration(cfg.Cache.QuestionPoolTTL, cache.DefaultQuestionPoolTTL),
		LeaderboardTTL:  config.TTLDuration(cfg.Cache.LeaderboardTTL, cache.DefaultLeaderboardTTL),
		MetricsTTL:      config.TTLDuration(cfg.Cache.MetricsTTL, cache.DefaultMetricsTTL),
		IdempotencyTTL:  config.TTLDuration(cfg.Cache.IdempotencyTTL, cache.DefaultIdempotencyTTL),
	})
	verifier := integrity.NewVerifier(cfg.Quiz.AnswerSecret)

	if err := seed.Seed(ctx, store, caches, verifier); err != nil {
		return err
	}

	service := app.NewSessionService(store, boards, caches, verifier)
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(handler)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logrus.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logrus.Info("shutting down server...")
	case <-ctx.Done():
		logrus.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
