package exchangerate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	companion "currency-companion"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

type mock struct {
	count int32
	err   error
}

func (m *mock) ExchangeRates(_ context.Context, base companion.Currency) (companion.Rates, error) {
	atomic.AddInt32(&m.count, 1)
	if m.err != nil {
		return nil, m.err
	}
	return companion.Rates{base: 1}, nil
}

func (m *mock) calls() int32 {
	return atomic.LoadInt32(&m.count)
}

func TestLookupWithCache(t *testing.T) {
	ctx := context.Background()

	var underlyingService mock
	s := NewCachingService(1*time.Minute, log.NewNopLogger(), &underlyingService)

	_, _ = s.ExchangeRates(ctx, "USD")
	assert.Equal(t, int32(1), underlyingService.calls())

	rates, err := s.ExchangeRates(ctx, "USD")
	assert.NoError(t, err)
	assert.Equal(t, companion.Rates{"USD": 1}, rates)
	assert.Equal(t, int32(1), underlyingService.calls())

	_, _ = s.ExchangeRates(ctx, "EUR")
	assert.Equal(t, int32(2), underlyingService.calls())
}

func TestLookupWithCache_Expiry(t *testing.T) {
	ctx := context.Background()

	var underlyingService mock
	s := NewCachingService(1*time.Minute, log.NewNopLogger(), &underlyingService).(*cachingService)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _ = s.ExchangeRates(ctx, "USD")
	now = now.Add(59 * time.Second)
	_, _ = s.ExchangeRates(ctx, "USD")
	assert.Equal(t, int32(1), underlyingService.calls())

	now = now.Add(1 * time.Second)
	_, _ = s.ExchangeRates(ctx, "USD")
	assert.Equal(t, int32(2), underlyingService.calls())
}

func TestLookupWithCache_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()

	underlyingService := mock{err: errors.New("boom")}
	s := NewCachingService(1*time.Minute, log.NewNopLogger(), &underlyingService)

	_, err := s.ExchangeRates(ctx, "USD")
	assert.Error(t, err)
	_, err = s.ExchangeRates(ctx, "USD")
	assert.Error(t, err)
	assert.Equal(t, int32(2), underlyingService.calls())
}

func TestLookupWithCache_CallerCannotMutateCache(t *testing.T) {
	ctx := context.Background()

	var underlyingService mock
	s := NewCachingService(1*time.Minute, log.NewNopLogger(), &underlyingService)

	rates, _ := s.ExchangeRates(ctx, "USD")
	rates["USD"] = 42

	rates, _ = s.ExchangeRates(ctx, "USD")
	assert.Equal(t, companion.Rate(1), rates["USD"])
}

func TestNewCachingService_Disabled(t *testing.T) {
	var underlyingService mock
	s := NewCachingService(0, log.NewNopLogger(), &underlyingService)
	assert.Same(t, &underlyingService, s)
}
