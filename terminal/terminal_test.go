package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	companion "currency-companion"
	"currency-companion/widget"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWidget(t *testing.T) *widget.Widget {
	t.Helper()
	allRates := map[companion.Currency]companion.Rates{
		"JPY": {"USD": 0.0067, "EUR": 0.0061},
		"USD": {"EUR": 0.92, "JPY": 149.5},
	}
	lookup := func(_ context.Context, base companion.Currency) (companion.Rates, error) {
		rates, ok := allRates[base]
		if !ok {
			return nil, errors.New("unavailable")
		}
		return rates, nil
	}
	w, err := widget.New(lookup, widget.DefaultSettings(), log.NewNopLogger())
	require.NoError(t, err)
	w.Start(context.Background())
	return w
}

func run(t *testing.T, script string) []string {
	t.Helper()
	var out bytes.Buffer
	s := NewSession(newWidget(t), strings.NewReader(script), &out, log.NewNopLogger())
	require.NoError(t, s.Run(context.Background()))
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func TestSession_Scenario(t *testing.T) {
	lines := run(t, "amount 100\ntarget eur\nbase USD\n")

	assert.Equal(t, []string{
		"1 JPY = 0.01 USD",
		"100 JPY = 0.67 USD",
		"100 JPY = 0.61 EUR",
		"100 USD = 92.00 EUR",
	}, lines)
}

func TestSession_RejectedAmount(t *testing.T) {
	lines := run(t, "amount 12.5\namount 12.5.3\nshow\n")

	assert.Equal(t, []string{
		"1 JPY = 0.01 USD",
		"12.5 JPY = 0.08 USD",
		"12.5 JPY = 0.08 USD",
		"12.5 JPY = 0.08 USD",
	}, lines)
}

func TestSession_FetchFailure(t *testing.T) {
	lines := run(t, "base GBP\n")

	assert.Equal(t, widget.FetchErrorMessage, lines[len(lines)-1])
}

func TestSession_Errors(t *testing.T) {
	lines := run(t, "base BTC\ntarget\nfrobnicate\n\n")

	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "unsupported currency")
	assert.Equal(t, "usage: target CODE", lines[2])
	assert.Equal(t, `unknown command "frobnicate", try help`, lines[3])
}

func TestSession_QuitStopsReading(t *testing.T) {
	lines := run(t, "currencies\nquit\namount 5\n")

	assert.Equal(t, []string{"1 JPY = 0.01 USD", "JPY USD EUR GBP"}, lines)
}

func TestSession_Help(t *testing.T) {
	lines := run(t, "help\n")

	assert.Contains(t, strings.Join(lines, "\n"), "base CODE")
	assert.Contains(t, strings.Join(lines, "\n"), "rates")
}

func TestSession_Rates(t *testing.T) {
	lines := run(t, "rates\ntarget EUR\nbase USD\nrates\n")

	assert.Equal(t, []string{
		"1 JPY = 0.01 USD",
		"EUR 0.0061",
		"USD 0.0067",
		"1 JPY = 0.01 EUR",
		"1 USD = 0.92 EUR",
		"EUR 0.92",
		"JPY 149.5",
	}, lines)
}

func TestSession_RatesBeforeFirstFetch(t *testing.T) {
	w, err := widget.New(func(context.Context, companion.Currency) (companion.Rates, error) {
		return nil, errors.New("unavailable")
	}, widget.DefaultSettings(), log.NewNopLogger())
	require.NoError(t, err)
	w.Start(context.Background())

	var out bytes.Buffer
	s := NewSession(w, strings.NewReader("rates\n"), &out, log.NewNopLogger())
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, widget.FetchErrorMessage+"\nno rates yet\n", out.String())
}

func TestSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(newWidget(t), strings.NewReader("show\n"), &bytes.Buffer{}, log.NewNopLogger())
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}
