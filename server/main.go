package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	companion "currency-companion"
	"currency-companion/config"
	"currency-companion/exchangerate"
	"currency-companion/http"
	"currency-companion/terminal"
	"currency-companion/widget"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	nhttp "net/http"
)

func main() {
	w := log.NewSyncWriter(os.Stderr)
	logger := log.NewLogfmtLogger(w)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	dotenvErr := config.LoadDotEnv()
	logger = level.NewFilter(logger, config.LevelOption(os.Getenv("LOG_LEVEL")))
	if dotenvErr != nil {
		level.Debug(logger).Log("msg", "no .env file loaded", "err", dotenvErr)
	}

	app := newApp(config.Load(logger), os.Stdin, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		level.Error(logger).Log("msg", "exiting", "err", err)
		stop()
		os.Exit(1)
	}
}

// widgetFlags configure the provider chain and the initial settings. Every
// subcommand declares them so they are accepted after the command name.
func widgetFlags(cfg config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "rates-url", Value: cfg.RatesURL, Usage: "exchange rate provider base url"},
		&cli.DurationFlag{Name: "rates-timeout", Value: cfg.RatesTimeout, Usage: "provider request timeout, 0 for none"},
		&cli.DurationFlag{Name: "rates-cache-ttl", Value: cfg.RatesCacheTTL, Usage: "serve fetched rate tables for this long, 0 disables"},
		&cli.StringFlag{Name: "base", Value: string(cfg.Defaults.Base), Usage: "initial base currency"},
		&cli.StringFlag{Name: "target", Value: string(cfg.Defaults.Target), Usage: "initial target currency"},
		&cli.StringFlag{Name: "amount", Value: cfg.Defaults.Amount, Usage: "initial amount"},
	}
}

func newApp(cfg config.Config, stdin io.Reader, logger log.Logger) *cli.App {
	return &cli.App{
		Name:  "currency-companion",
		Usage: "convert amounts between currencies with live exchange rates",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the widget page and JSON API over HTTP",
				Flags: append(widgetFlags(cfg),
					&cli.StringFlag{Name: "addr", Value: cfg.HTTPAddr, Usage: "listen address"},
				),
				Action: func(c *cli.Context) error {
					return serve(c, logger)
				},
			},
			{
				Name:  "repl",
				Usage: "drive the widget from the terminal",
				Flags: widgetFlags(cfg),
				Action: func(c *cli.Context) error {
					return repl(c, stdin, logger)
				},
			},
			{
				Name:      "convert",
				Usage:     "print one conversion and exit",
				ArgsUsage: "[--base CODE] [--target CODE] [--amount VALUE]",
				Flags:     widgetFlags(cfg),
				Action: func(c *cli.Context) error {
					return convert(c, logger)
				},
			},
		},
	}
}

// build wires the provider chain and the widget from the command flags
func build(c *cli.Context, logger log.Logger, reg prometheus.Registerer) (*widget.Widget, error) {
	var rates exchangerate.Service
	rates = exchangerate.NewService(c.String("rates-url"), c.Duration("rates-timeout"))
	rates = exchangerate.NewLoggingService(log.With(logger, "component", "exchangerate_rest"), rates)
	if reg != nil {
		rates = exchangerate.NewInstrumentingService(reg, rates)
	}
	rates = exchangerate.NewCachingService(c.Duration("rates-cache-ttl"), log.With(logger, "component", "exchangerate_cache"), rates)

	settings := widget.Settings{
		Base:   companion.Currency(strings.ToUpper(c.String("base"))),
		Target: companion.Currency(strings.ToUpper(c.String("target"))),
		Amount: c.String("amount"),
	}
	return widget.New(widget.LookupWithService(rates), settings, log.With(logger, "component", "widget"))
}

func serve(c *cli.Context, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	wg, err := build(c, logger, reg)
	if err != nil {
		return err
	}
	wg.Start(c.Context)

	handler := http.NewServer(wg, reg, log.With(logger, "component", "http"))
	srv := &nhttp.Server{
		Addr:              c.String("addr"),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, nhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-c.Context.Done():
	}

	level.Info(logger).Log("msg", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func repl(c *cli.Context, stdin io.Reader, logger log.Logger) error {
	wg, err := build(c, logger, nil)
	if err != nil {
		return err
	}
	wg.Start(c.Context)

	session := terminal.NewSession(wg, stdin, c.App.Writer, log.With(logger, "component", "terminal"))
	err = session.Run(c.Context)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func convert(c *cli.Context, logger log.Logger) error {
	wg, err := build(c, logger, nil)
	if err != nil {
		return err
	}
	wg.Start(c.Context)
	if err := wg.Wait(c.Context); err != nil {
		return err
	}

	st := wg.State()
	fmt.Fprintln(c.App.Writer, st.Display())
	if st.Err != nil {
		return cli.Exit(st.Err.Error(), 1)
	}
	return nil
}
