package exchangerate

import (
	"context"
	"time"

	companion "currency-companion"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// loggingService decorates an exchangerate.Service with logging
type loggingService struct {
	next   Service
	logger log.Logger
}

// NewLoggingService return a new logging service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) ExchangeRates(ctx context.Context, base companion.Currency) (rates companion.Rates, err error) {
	defer func(begin time.Time) {
		logger := level.Debug(s.logger)
		if err != nil {
			logger = level.Warn(s.logger)
		}
		logger.Log(
			"method", "exchange_rates",
			"base", base,
			"rates", len(rates),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ExchangeRates(ctx, base)
}
