package exchangerate

import (
	"context"
	"time"

	companion "currency-companion"

	"github.com/prometheus/client_golang/prometheus"
)

// instrumentingService decorates an exchangerate.Service with prometheus metrics
type instrumentingService struct {
	next     Service
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewInstrumentingService registers the provider metrics with reg and returns the decorated service.
func NewInstrumentingService(reg prometheus.Registerer, s Service) Service {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangerate_requests_total",
		Help: "Total number of rate table lookups by base currency and outcome",
	}, []string{"base", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchangerate_request_duration_seconds",
		Help:    "Duration of rate table lookups",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
	}, []string{"base"})
	reg.MustRegister(requests, duration)

	return &instrumentingService{
		next:     s,
		requests: requests,
		duration: duration,
	}
}

func (s *instrumentingService) ExchangeRates(ctx context.Context, base companion.Currency) (rates companion.Rates, err error) {
	defer func(begin time.Time) {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.requests.WithLabelValues(string(base), outcome).Inc()
		s.duration.WithLabelValues(string(base)).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return s.next.ExchangeRates(ctx, base)
}
