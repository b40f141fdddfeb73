package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/infra/memory"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		CatalogLoader: memory.NewCatalogStore(map[string]domain.Test{
			"test-1": sampleTest(),
		}),
	}
	repo := NewCatalogCache(newClient(mr), loader, time.Minute, zerolog.Nop())

	got, err := repo.GetTest(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("test:test-1:catalog") {
		t.Fatalf("expected cached key")
	}
	if ttl := mr.TTL("test:test-1:catalog"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetTest(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("get cached test: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Questions) != len(got.Questions) || cached.Questions[1].Question.Correct != "[0,2]" {
		t.Fatalf("cached test lost payloads: %+v", cached)
	}
	if cached.Questions[0].Question != nil {
		t.Fatalf("expected deleted question to stay nil")
	}

	if err := repo.Invalidate(context.Background(), "test-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetTest(context.Background(), "test-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestCatalogCacheZeroTTLDoesNotCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		CatalogLoader: memory.NewCatalogStore(map[string]domain.Test{"test-1": sampleTest()}),
	}
	repo := NewCatalogCache(newClient(mr), loader, 0, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := repo.GetTest(context.Background(), "test-1"); err != nil {
			t.Fatalf("get test: %v", err)
		}
	}
	if mr.Exists("test:test-1:catalog") {
		t.Fatalf("zero ttl must not write a key that never expires")
	}
	if loader.calls != 2 {
		t.Fatalf("expected every read to load, loader calls=%d", loader.calls)
	}
}

func TestCatalogCacheCorruptEntryReloads(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("test:test-1:catalog", "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loader := &countingLoader{CatalogLoader: memory.NewCatalogStore(map[string]domain.Test{"test-1": sampleTest()})}
	repo := NewCatalogCache(newClient(mr), loader, time.Minute, zerolog.Nop())

	test, err := repo.GetTest(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if test.Title != "Sets" || loader.calls != 1 {
		t.Fatalf("expected reload from loader, got %+v calls=%d", test, loader.calls)
	}
}

func TestCatalogCacheMissingTest(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewCatalogCache(newClient(mr), memory.NewCatalogStore(nil), time.Minute, zerolog.Nop())
	if _, err := repo.GetTest(context.Background(), "nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if mr.Exists("test:nope:catalog") {
		t.Fatalf("misses must not be cached")
	}
}

type countingLoader struct {
	app.CatalogLoader
	calls int
}

func (l *countingLoader) LoadTest(ctx context.Context, testID string) (domain.Test, error) {
	l.calls++
	return l.CatalogLoader.LoadTest(ctx, testID)
}

func sampleTest() domain.Test {
	return domain.Test{
		ID:    "test-1",
		Title: "Sets",
		Questions: []domain.TestQuestion{
			{ID: 1, TestID: "test-1", QuestionID: "q-gone", Order: 1, Points: 1},
			{
				ID: 2, TestID: "test-1", QuestionID: "q1", Order: 2, Points: 3,
				Question: &domain.Question{
					ID:         "q1",
					Text:       "Pick the vowels",
					AnswerType: domain.AnswerMulti,
					Options:    `["a","b","e"]`,
					Correct:    "[0,2]",
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
