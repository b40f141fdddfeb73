package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
	pgloader "school-quiz-service/internal/infra/postgres"
	infraredis "school-quiz-service/internal/infra/redis"
	"school-quiz-service/internal/infra/sqlstore"
)

type stack struct {
	attempts *app.AttemptService
	catalog  *app.CatalogService
	loader   *pgloader.CatalogLoader
}

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	s := newStack(t, ctx)
	seedCatalog(t, ctx, s.catalog)

	attempt, created, err := s.attempts.StartAttempt(ctx, "test-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !created || attempt.MaxScore != 3 {
		t.Fatalf("unexpected attempt %+v created=%v", attempt, created)
	}

	one := 1
	if _, err := s.attempts.SubmitAnswer(ctx, attempt.ID, "q1", domain.Submission{SelectedOptionID: &one}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	res, err := s.attempts.SubmitAnswer(ctx, attempt.ID, "q2", domain.Submission{FreeText: "Pariss"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if res.Correct {
		t.Fatalf("expected misspelt answer to be wrong")
	}

	finished, err := s.attempts.FinishAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Score == nil || *finished.Score != 1 {
		t.Fatalf("expected score 1, got %v", finished.Score)
	}

	// accept the misspelling and rescore; the redis copy must be dropped
	fixed := grading.BuildQuestion("q2", "Capital of France", domain.AnswerText, grading.Options{}, grading.Correct{Text: "pariss"})
	if err := s.catalog.PutQuestion(ctx, fixed); err != nil {
		t.Fatalf("fix key: %v", err)
	}
	summary, err := s.attempts.RescoreAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if summary.Score != 3 || summary.MaxScore != 3 {
		t.Fatalf("expected 3/3 after fix, got %+v", summary)
	}

	again, err := s.attempts.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if !again.FinishedAt.Equal(*finished.FinishedAt) {
		t.Fatalf("rescore must keep finishedAt")
	}

	if _, _, err := s.attempts.StartAttempt(ctx, "test-1", "u1"); !isState(err) {
		t.Fatalf("expected attempt limit, got %v", err)
	}
}

func TestLoaderKeepsLinksToDeletedQuestions(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	s := newStack(t, ctx)
	seedCatalog(t, ctx, s.catalog)

	if err := s.catalog.DeleteQuestion(ctx, "q2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	test, err := s.loader.LoadTest(ctx, "test-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(test.Questions) != 2 {
		t.Fatalf("expected 2 links, got %d", len(test.Questions))
	}
	if test.Questions[1].Question != nil {
		t.Fatalf("expected deleted question to load as nil")
	}
	if _, err := s.loader.LoadTest(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newStack(t *testing.T, ctx context.Context) stack {
	t.Helper()
	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlstore.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { redisClient.Close() })

	store := sqlstore.New(db)
	loader := pgloader.NewCatalogLoader(pool)
	cache := infraredis.NewCatalogCache(redisClient, loader, 5*time.Minute, zerolog.Nop())
	engine := grading.NewEngine(grading.WithLogger(zerolog.Nop()))

	return stack{
		attempts: app.NewAttemptService(cache, store, engine, zerolog.Nop()),
		catalog:  app.NewCatalogService(store, cache, engine, zerolog.Nop()),
		loader:   loader,
	}
}

func seedCatalog(t *testing.T, ctx context.Context, catalog *app.CatalogService) {
	t.Helper()
	questions := []domain.Question{
		grading.BuildQuestion("q1", "What is 2 + 2?", domain.AnswerSingle,
			grading.Options{Choices: []string{"3", "4", "5"}}, grading.Correct{Index: 1}),
		grading.BuildQuestion("q2", "Capital of France", domain.AnswerText,
			grading.Options{}, grading.Correct{Text: "Paris"}),
	}
	for _, q := range questions {
		if err := catalog.PutQuestion(ctx, q); err != nil {
			t.Fatalf("put question %s: %v", q.ID, err)
		}
	}
	test := domain.Test{
		ID:          "test-1",
		Title:       "Mixed",
		MaxAttempts: 1,
		Questions: []domain.TestQuestion{
			{TestID: "test-1", QuestionID: "q1", Order: 1, Points: 1},
			{TestID: "test-1", QuestionID: "q2", Order: 2, Points: 2},
		},
	}
	if err := catalog.PutTest(ctx, test); err != nil {
		t.Fatalf("put test: %v", err)
	}
}

func isState(err error) bool {
	var state *domain.StateError
	return errors.As(err, &state)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
