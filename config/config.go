package config

import (
	"os"
	"strings"
	"time"

	companion "currency-companion"
	"currency-companion/widget"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RatesURL      string
	RatesTimeout  time.Duration
	RatesCacheTTL time.Duration
	HTTPAddr      string
	Defaults      widget.Settings
	LogLevel      string
}

// LoadDotEnv copies variables from a .env file in the working directory into
// the environment. Variables already set are left alone. It returns the error
// from reading the file so the caller can log it once its level filter is in place.
func LoadDotEnv() error {
	return godotenv.Load()
}

// Load reads the environment, falling back to defaults.
// Invalid values are reported on logger and replaced by their default.
func Load(logger log.Logger) Config {
	defaults := widget.DefaultSettings()
	return Config{
		RatesURL:      envOrDefault("RATES_URL", "https://api.exchangerate-api.com/v4"),
		RatesTimeout:  envOrDefaultDuration(logger, "RATES_TIMEOUT", 10*time.Second),
		RatesCacheTTL: envOrDefaultDuration(logger, "RATES_CACHE_TTL", 0),
		HTTPAddr:      envOrDefault("HTTP_ADDR", ":8080"),
		Defaults: widget.Settings{
			Base:   envOrDefaultCurrency(logger, "DEFAULT_BASE", defaults.Base),
			Target: envOrDefaultCurrency(logger, "DEFAULT_TARGET", defaults.Target),
			Amount: envOrDefaultAmount(logger, "DEFAULT_AMOUNT", defaults.Amount),
		},
		LogLevel: strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
	}
}

// LevelOption maps a level name to a go-kit level filter. Unknown names allow info and above.
func LevelOption(name string) level.Option {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultDuration(logger log.Logger, key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			level.Warn(logger).Log("msg", "invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultCurrency(logger log.Logger, key string, defaultVal companion.Currency) companion.Currency {
	if v := os.Getenv(key); v != "" {
		c := companion.Currency(strings.ToUpper(v))
		if !companion.Supported(c) {
			level.Warn(logger).Log("msg", "unsupported currency env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return c
	}
	return defaultVal
}

func envOrDefaultAmount(logger log.Logger, key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		if !widget.ValidAmount(v) {
			level.Warn(logger).Log("msg", "invalid amount env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return v
	}
	return defaultVal
}
