package widget

import (
	"context"
	"fmt"
	"sync"

	companion "currency-companion"
	"currency-companion/exchangerate"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/shopspring/decimal"
)

// FetchErrorMessage is shown in place of the conversion line while the latest fetch has failed.
const FetchErrorMessage = "Error fetching exchange rates"

// LookupFunc for looking up the rate table of a base currency.
// Implementations must honour ctx cancellation where they can.
type LookupFunc func(ctx context.Context, base companion.Currency) (companion.Rates, error)

// LookupWithService look up rate tables through an exchangerate.Service
func LookupWithService(s exchangerate.Service) LookupFunc {
	return s.ExchangeRates
}

// FetchError records a failed rate table fetch
type FetchError struct {
	Base companion.Currency
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching rates for %v: %v", e.Base, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Settings are the values a widget starts with
type Settings struct {
	Base   companion.Currency
	Target companion.Currency
	Amount string
}

// DefaultSettings 1 JPY in USD
func DefaultSettings() Settings {
	return Settings{Base: "JPY", Target: "USD", Amount: "1"}
}

// Validate checks both currencies are supported and the amount is acceptable input.
func (s Settings) Validate() error {
	if err := companion.Validate(s.Base); err != nil {
		return fmt.Errorf("base: %w", err)
	}
	if err := companion.Validate(s.Target); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if !ValidAmount(s.Amount) {
		return fmt.Errorf("amount: invalid value %q", s.Amount)
	}
	return nil
}

// State is a snapshot of the widget.
type State struct {
	Base      companion.Currency
	Target    companion.Currency
	Amount    string
	Converted decimal.Decimal
	Rates     companion.Rates

	// Err is a *FetchError while the most recent fetch has failed
	Err error
}

// Display renders the conversion line, or the fetch error message.
func (s State) Display() string {
	if s.Err != nil {
		return FetchErrorMessage
	}
	return fmt.Sprintf("%s %s = %s %s", s.Amount, s.Base, s.Converted.StringFixed(2), s.Target)
}

// Widget holds the conversion state and keeps the converted amount in step with
// amount, target and rates. Changing the base fetches its rate table in the
// background; only the response for the most recently selected base is applied.
// A Widget is safe for concurrent use.
type Widget struct {
	lookup LookupFunc
	logger log.Logger

	// ctx bounds every fetch; set by Start
	ctx context.Context

	mu    sync.Mutex
	state State

	// seq tags the latest fetch; responses carrying an older tag are dropped
	seq uint64

	// cancel aborts the latest fetch when it is superseded
	cancel context.CancelFunc

	// settled is closed once the latest fetch has completed
	settled chan struct{}
}

// New constructs a Widget. No fetch happens until Start.
func New(lookup LookupFunc, settings Settings, logger log.Logger) (*Widget, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("widget settings: %w", err)
	}
	settled := make(chan struct{})
	close(settled)
	return &Widget{
		lookup: lookup,
		logger: logger,
		ctx:    context.Background(),
		state: State{
			Base:      settings.Base,
			Target:    settings.Target,
			Amount:    settings.Amount,
			Converted: decimal.Zero,
			Rates:     companion.Rates{},
		},
		settled: settled,
	}, nil
}

// Start issues the initial fetch for the current base. ctx bounds this and all later fetches.
func (w *Widget) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
	w.beginFetch(w.state.Base)
}

// SetBaseCurrency selects the base currency. Selecting a different base fetches its
// rate table; target and amount are left as they are.
func (w *Widget) SetBaseCurrency(code companion.Currency) error {
	if err := companion.Validate(code); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if code == w.state.Base {
		return nil
	}
	w.state.Base = code
	w.beginFetch(code)
	return nil
}

// SetTargetCurrency selects the target currency and recomputes with the rates already held.
func (w *Widget) SetTargetCurrency(code companion.Currency) error {
	if err := companion.Validate(code); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Target = code
	w.recompute()
	return nil
}

// SetAmount replaces the amount being edited. Input outside the numeric pattern is
// ignored and false returned.
func (w *Widget) SetAmount(raw string) bool {
	if !ValidAmount(raw) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Amount = raw
	w.recompute()
	return true
}

// State returns a copy of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.Rates = s.Rates.Clone()
	return s
}

// Display renders the current state.
func (w *Widget) Display() string {
	return w.State().Display()
}

// Wait blocks until the fetch for the currently selected base has completed, or ctx is done.
func (w *Widget) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		done := w.settled
		w.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		w.mu.Lock()
		latest := done == w.settled
		w.mu.Unlock()
		if latest {
			return nil
		}
	}
}

// beginFetch must be called with mu held.
func (w *Widget) beginFetch(base companion.Currency) {
	if w.cancel != nil {
		w.cancel()
	}
	w.seq++
	ctx, cancel := context.WithCancel(w.ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.settled = done

	level.Debug(w.logger).Log("msg", "fetching rates", "base", base, "seq", w.seq)
	go w.fetchRates(ctx, base, w.seq, cancel, done)
}

func (w *Widget) fetchRates(ctx context.Context, base companion.Currency, seq uint64, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	rates, err := w.lookup(ctx, base)

	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.seq {
		level.Debug(w.logger).Log("msg", "discarding stale response", "base", base, "seq", seq, "latest", w.seq)
		return
	}
	w.cancel = nil

	if err != nil {
		level.Error(w.logger).Log("msg", "rate fetch failed", "base", base, "err", err)
		w.state.Err = &FetchError{Base: base, Err: err}
		return
	}

	w.state.Rates = rates.Clone()
	w.state.Err = nil
	w.recompute()
	level.Debug(w.logger).Log("msg", "rates replaced", "base", base, "rates", len(rates))
}

// recompute must be called with mu held. Without a rate for the target the
// previous converted amount stays on display.
func (w *Widget) recompute() {
	rate, ok := w.state.Rates[w.state.Target]
	if !ok {
		return
	}
	w.state.Converted = Convert(ParseAmount(w.state.Amount), rate)
}
