package exchangerate

import (
	"context"
	"fmt"
	"sync"
	"time"

	companion "currency-companion"

	"github.com/go-kit/log"
)

// cachingService decorates an exchangerate.Service with a cache of rate tables.
// The cachingService is concurrency safe. Entries expire ttl after they were fetched;
// failed lookups are never cached.
type cachingService struct {
	// next the service being decorated with a cache
	next Service

	// cache the cache of rates keyed by base currency
	cache map[companion.Currency]cacheEntry

	// ttl how long a fetched table is served
	ttl time.Duration

	// lock synchronizes access to cache to make it concurrency safe
	lock sync.RWMutex

	// now is time.Now outside of tests
	now func() time.Time

	logger log.Logger
}

type cacheEntry struct {
	rates     companion.Rates
	fetchedAt time.Time
}

// NewCachingService returns a new caching Service. A non-positive ttl returns s unchanged.
func NewCachingService(ttl time.Duration, logger log.Logger, s Service) Service {
	if ttl <= 0 {
		return s
	}
	return &cachingService{
		next:   s,
		cache:  map[companion.Currency]cacheEntry{},
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// ExchangeRates looks up exchange rates and caches the results.
// Callers receive their own copy so the cached table is never mutated.
func (s *cachingService) ExchangeRates(ctx context.Context, base companion.Currency) (companion.Rates, error) {
	s.lock.RLock()
	entry, ok := s.cache[base]
	s.lock.RUnlock()

	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		s.logger.Log("msg", "cache hit", "base", base)
		return entry.rates.Clone(), nil
	}

	// Concurrent misses for the same base each go to the provider; the last one to finish wins.
	rates, err := s.next.ExchangeRates(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("refreshing cache [%v]: %w", base, err)
	}

	s.lock.Lock()
	s.cache[base] = cacheEntry{rates: rates.Clone(), fetchedAt: s.now()}
	s.lock.Unlock()

	return rates, nil
}
