package asyncqueue

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Swind/go-async-queue/core"
)

var (
	// ErrInvalidSettings is returned when Settings fail validation.
	ErrInvalidSettings = errors.New("invalid async queue settings")

	// ErrSettingsParse is returned when environment variables cannot be parsed.
	ErrSettingsParse = errors.New("failed to parse async queue settings")
)

// Settings holds the environment-driven configuration of queues and pools.
type Settings struct {
	Name             string `env:"ASYNCQUEUE_NAME" envDefault:"async-queue"`
	PoolWorkers      int    `env:"ASYNCQUEUE_POOL_WORKERS" envDefault:"4"`
	HistoryCapacity  int    `env:"ASYNCQUEUE_HISTORY_CAPACITY" envDefault:"100"`
	LogLevel         string `env:"ASYNCQUEUE_LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"ASYNCQUEUE_LOG_FORMAT" envDefault:"text"`
	MetricsNamespace string `env:"ASYNCQUEUE_METRICS_NAMESPACE" envDefault:"asyncqueue"`
	MetricsAddr      string `env:"ASYNCQUEUE_METRICS_ADDR" envDefault:":9464"`
}

// LoadSettings reads Settings from the environment. A .env file in the
// working directory is loaded first if present; variables already set win.
func LoadSettings() (Settings, error) {
	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load()

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, errors.Join(ErrSettingsParse, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.PoolWorkers < 1 {
		return fmt.Errorf("%w: ASYNCQUEUE_POOL_WORKERS must be positive, got %d", ErrInvalidSettings, s.PoolWorkers)
	}
	if s.HistoryCapacity < 1 {
		return fmt.Errorf("%w: ASYNCQUEUE_HISTORY_CAPACITY must be positive, got %d", ErrInvalidSettings, s.HistoryCapacity)
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: ASYNCQUEUE_LOG_FORMAT must be text or json, got %q", ErrInvalidSettings, s.LogFormat)
	}
	return nil
}

// Logger builds a slog-backed core.Logger writing to stderr.
func (s Settings) Logger() core.Logger {
	return s.LoggerTo(os.Stderr)
}

// LoggerTo builds a slog-backed core.Logger writing to w.
func (s Settings) LoggerTo(w io.Writer) core.Logger {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(s.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return core.NewSlogLogger(slog.New(h))
}

// QueueConfig returns a queue config named after s.Name using logger.
func (s Settings) QueueConfig(logger core.Logger) *core.AsyncQueueConfig {
	return &core.AsyncQueueConfig{
		Name:            s.Name,
		Logger:          logger,
		HistoryCapacity: s.HistoryCapacity,
	}
}

func parseLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%w: ASYNCQUEUE_LOG_LEVEL %q: %v", ErrInvalidSettings, v, err)
	}
	return level, nil
}
