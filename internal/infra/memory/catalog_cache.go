package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
)

// CatalogCache caches tests with TTL to avoid repeated DB hits.
type CatalogCache struct {
	loader app.CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedTest
	// gen is bumped by Invalidate; a load that saw an older value is not cached.
	gen map[string]uint64
}

type cachedTest struct {
	test      domain.Test
	expiresAt time.Time
}

func NewCatalogCache(loader app.CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
		gen:    make(map[string]uint64),
	}
}

func (r *CatalogCache) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	if test, ok := r.lookup(testID); ok {
		return test, nil
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		if test, ok := r.lookup(testID); ok {
			return test, nil
		}

		r.mu.RLock()
		gen := r.gen[testID]
		r.mu.RUnlock()

		test, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		r.mu.Lock()
		if r.gen[testID] == gen {
			r.cache[testID] = cachedTest{
				test:      test,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

// Invalidate drops a cached test so the next read goes to the loader.
func (r *CatalogCache) Invalidate(_ context.Context, testID string) error {
	r.mu.Lock()
	delete(r.cache, testID)
	r.gen[testID]++
	r.mu.Unlock()
	// later readers must not join a load that started before this call
	r.sf.Forget(testID)
	return nil
}

func (r *CatalogCache) lookup(testID string) (domain.Test, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[testID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Test{}, false
	}
	return entry.test, true
}

// ttlWithJitter must be called with mu held; rand.Rand is not goroutine safe.
func (r *CatalogCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
