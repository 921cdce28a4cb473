// Package terminal drives a conversion widget from line-based text commands.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	companion "currency-companion"
	"currency-companion/widget"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Widget is the conversion state driven by a Session
type Widget interface {
	SetBaseCurrency(code companion.Currency) error
	SetTargetCurrency(code companion.Currency) error
	SetAmount(raw string) bool
	State() widget.State
	Wait(ctx context.Context) error
}

const help = `commands:
  base CODE      select the base currency
  target CODE    select the target currency
  amount VALUE   set the amount in the base currency
  show           print the conversion
  currencies     list supported currencies
  rates          list the held rates for the base currency
  help           print this help
  quit           leave`

// Session reads commands from in and writes the conversion line to out after each change
type Session struct {
	widget Widget
	in     io.Reader
	out    io.Writer
	logger log.Logger

	// SettleTimeout bounds how long a base change waits for its rates before printing
	SettleTimeout time.Duration
}

// NewSession constructs a Session
func NewSession(w Widget, in io.Reader, out io.Writer, logger log.Logger) *Session {
	return &Session{
		widget:        w,
		in:            in,
		out:           out,
		logger:        logger,
		SettleTimeout: 15 * time.Second,
	}
}

// errQuit ends Run without error
var errQuit = errors.New("quit")

// Run processes commands until quit, end of input, or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	s.println(s.widget.State().Display())

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}

func (s *Session) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		s.println(help)
	case "currencies":
		codes := lo.Map(companion.Currencies(), func(c companion.Currency, _ int) string { return string(c) })
		s.println(strings.Join(codes, " "))
	case "rates":
		s.printRates(s.widget.State().Rates)
	case "show":
		s.println(s.widget.State().Display())
	case "base":
		if len(args) != 1 {
			s.println("usage: base CODE")
			return nil
		}
		if err := s.widget.SetBaseCurrency(companion.Currency(strings.ToUpper(args[0]))); err != nil {
			s.println(err.Error())
			return nil
		}
		if err := s.settle(ctx); err != nil {
			return err
		}
		s.println(s.widget.State().Display())
	case "target":
		if len(args) != 1 {
			s.println("usage: target CODE")
			return nil
		}
		if err := s.widget.SetTargetCurrency(companion.Currency(strings.ToUpper(args[0]))); err != nil {
			s.println(err.Error())
			return nil
		}
		s.println(s.widget.State().Display())
	case "amount":
		// rejected input leaves the amount as it was; print it either way
		s.widget.SetAmount(strings.Join(args, " "))
		s.println(s.widget.State().Display())
	default:
		s.println(fmt.Sprintf("unknown command %q, try help", cmd))
	}
	return nil
}

// settle waits for the latest fetch. A timeout is logged and not fatal.
func (s *Session) settle(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, s.SettleTimeout)
	defer cancel()
	err := s.widget.Wait(wctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		level.Warn(s.logger).Log("msg", "rates not settled", "err", err)
	}
	return nil
}

func (s *Session) printRates(rates companion.Rates) {
	if len(rates) == 0 {
		s.println("no rates yet")
		return
	}
	for _, code := range rates.Codes() {
		s.println(fmt.Sprintf("%s %s", code, decimal.NewFromFloat(float64(rates[code]))))
	}
}

func (s *Session) println(msg string) {
	fmt.Fprintln(s.out, msg)
}
