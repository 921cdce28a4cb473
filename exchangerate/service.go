package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	companion "currency-companion"
)

const ApiUrlBase = "https://api.exchangerate-api.com/v4"

// ErrMalformedResponse is returned when the provider answers 2xx with a body that is not a usable rate table.
var ErrMalformedResponse = errors.New("malformed rate response")

// Service wraps the exchange rate REST API
type Service interface {
	ExchangeRates(ctx context.Context, base companion.Currency) (companion.Rates, error)
}

// service exchange rate API
type service struct {
	// url base API url, without trailing slash
	url string

	// client for HTTP requests
	client http.Client
}

// NewService constructs a valid Service against url. A zero timeout means no client timeout.
func NewService(url string, timeout time.Duration) Service {
	if url == "" {
		url = ApiUrlBase
	}
	return &service{
		url: strings.TrimRight(url, "/"),
		client: http.Client{
			Timeout: timeout,
		},
	}
}

// ExchangeRates loads the latest rates for one unit of base.
func (s *service) ExchangeRates(ctx context.Context, base companion.Currency) (companion.Rates, error) {
	type Response struct {
		Base  string                 `json:"base"`
		Date  string                 `json:"date"`
		Rates map[string]json.Number `json:"rates"`
	}

	url := fmt.Sprintf("%v/latest/%v", s.url, base)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	httpResponse, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer httpResponse.Body.Close()

	bytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("reading json: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return nil, fmt.Errorf("http status %d: %s", httpResponse.StatusCode, strings.TrimSpace(string(bytes)))
	}

	var response Response
	err = json.Unmarshal(bytes, &response)
	if err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	if len(response.Rates) == 0 {
		return nil, fmt.Errorf("%w: no rates", ErrMalformedResponse)
	}
	if response.Base != "" && companion.Currency(response.Base) != base {
		return nil, fmt.Errorf("%w: asked for base %v, got %v", ErrMalformedResponse, base, response.Base)
	}

	rates := make(companion.Rates, len(response.Rates))
	for k, v := range response.Rates {
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad rate value for %v: %v", ErrMalformedResponse, k, err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("%w: non-positive rate for %v: %v", ErrMalformedResponse, k, f)
		}
		rates[companion.Currency(k)] = companion.Rate(f)
	}

	return rates, nil
}
