package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
)

// CatalogCache caches tests in Redis and falls back to a loader on cache miss.
// Each test is stored as JSON, question payloads included:
//
//	SET test:{testID}:catalog {json} EX ttl
//
// Deleted questions are cached as links without a question, so every
// instance sees the same gradable set until the entry expires.
type CatalogCache struct {
	client *redis.Client
	loader app.CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader app.CatalogLoader, ttl time.Duration, log zerolog.Logger) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogCache) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	if test, ok := r.cached(ctx, testID); ok {
		return test, nil
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if test, ok := r.cached(ctx, testID); ok {
			return test, nil
		}

		test, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		// a zero ttl disables caching, as in the memory cache; redis would keep it forever
		if r.ttl <= 0 {
			return test, nil
		}
		raw, err := json.Marshal(test)
		if err != nil {
			return domain.Test{}, fmt.Errorf("encode test %s: %w", testID, err)
		}
		// best effort, a failed write only costs another load
		if err := r.client.Set(ctx, r.key(testID), raw, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn().Err(err).Str("testId", testID).Msg("cache test")
		}
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

// Invalidate drops a cached test, e.g. after authoring changes.
func (r *CatalogCache) Invalidate(ctx context.Context, testID string) error {
	r.sf.Forget(testID)
	return r.client.Del(ctx, r.key(testID)).Err()
}

func (r *CatalogCache) cached(ctx context.Context, testID string) (domain.Test, bool) {
	raw, err := r.client.Get(ctx, r.key(testID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("testId", testID).Msg("read cached test")
		}
		return domain.Test{}, false
	}
	var test domain.Test
	if err := json.Unmarshal(raw, &test); err != nil {
		r.log.Warn().Err(err).Str("testId", testID).Msg("decode cached test")
		return domain.Test{}, false
	}
	return test, true
}

func (r *CatalogCache) key(testID string) string {
	return "test:" + testID + ":catalog"
}

func (r *CatalogCache) ttlWithJitter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
