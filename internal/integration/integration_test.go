package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"brainbolt/internal/app"
	"brainbolt/internal/cache"
	"brainbolt/internal/domain"
	pgstore "brainbolt/internal/infra/postgres"
	pgmigrations "brainbolt/internal/infra/postgres/migrations"
	infraredis "brainbolt/internal/infra/redis"
	"brainbolt/internal/integrity"
	"brainbolt/internal/seed"
)

func TestAnswerFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pgstore.NewStore(pool)
	boards := infraredis.NewLeaderboard(redisClient)
	caches := cache.NewLayers(cache.Config{})
	verifier := integrity.NewVerifier(integrity.DefaultSecret)

	if err := seed.Seed(ctx, store, caches, verifier); err != nil {
		t.Fatalf("seed: %v", err)
	}

	service := app.NewSessionService(store, boards, caches, verifier)

	next, err := service.NextQuestion(ctx, "u1")
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if next.StateVersion != 0 || next.SessionID != "u1-0" {
		t.Fatalf("fresh session = %q v%d, want u1-0 v0", next.SessionID, next.StateVersion)
	}

	question, err := store.GetQuestionByID(ctx, next.QuestionID)
	if err != nil {
		t.Fatalf("load question: %v", err)
	}
	correctIdx := verifier.FindCorrectAnswer(question.CorrectAnswerHash)
	if correctIdx < 0 {
		t.Fatalf("seeded question %s has no recoverable answer", question.ID)
	}

	sub := domain.AnswerSubmission{
		QuestionID:     next.QuestionID,
		Answer:         correctIdx,
		SessionID:      next.SessionID,
		StateVersion:   next.StateVersion,
		IdempotencyKey: "e2e-k1",
	}
	result, err := service.SubmitAnswer(ctx, "u1", sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.StateVersion != 1 {
		t.Fatalf("result = %+v, want correct at version 1", result)
	}
	if result.LeaderboardRankScore != 1 || result.LeaderboardRankStreak != 1 {
		t.Fatalf("ranks = %d/%d, want 1/1", result.LeaderboardRankScore, result.LeaderboardRankStreak)
	}

	// Replaying the same idempotency key must not mutate anything.
	replay, err := service.SubmitAnswer(ctx, "u1", sub)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay != result {
		t.Fatalf("replay = %+v, want byte-identical first result", replay)
	}
	state, err := store.GetUserState(ctx, "u1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.StateVersion != 1 {
		t.Fatalf("state version = %d, want 1", state.StateVersion)
	}

	// A submission against the consumed version is rejected.
	caches.UserState.Delete("u1")
	stale := sub
	stale.IdempotencyKey = "e2e-k2"
	_, err = service.SubmitAnswer(ctx, "u1", stale)
	if !errors.Is(err, domain.ErrSessionMismatch) && !errors.Is(err, domain.ErrStaleStateVersion) {
		t.Fatalf("stale submit: got %v, want session or version rejection", err)
	}

	rows, err := service.ScoreLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "u1" {
		t.Fatalf("board = %+v, want u1 only", rows)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
