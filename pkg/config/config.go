// Package config reads the client settings from the environment and an
// optional .env file, and opens the rotating log file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deepai/deepai-client/pkg/api"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

type Config struct {
	APIURL      string        `env:"DEEPAI_API_URL,required"`
	DataDir     string        `env:"DEEPAI_DATA_DIR"`
	Storage     string        `env:"DEEPAI_STORAGE" envDefault:"file"` // file|sqlite
	ContextSize int           `env:"DEEPAI_CONTEXT_SIZE" envDefault:"8"`
	Timeout     time.Duration `env:"DEEPAI_TIMEOUT" envDefault:"0s"` // 0 means no limit
	BridgeAddr  string        `env:"DEEPAI_BRIDGE_ADDR" envDefault:"127.0.0.1:5177"`

	Log           string `env:"DEEPAI_LOG"`
	LogLevel      string `env:"DEEPAI_LOG_LEVEL" envDefault:"INFO"`  // TRACE|DEBUG|INFO|WARN|ERROR
	LogMode       string `env:"DEEPAI_LOG_MODE" envDefault:"TEXT"`   // TEXT|JSON
	LogMaxSize    int    `env:"DEEPAI_LOG_MAX_SIZE" envDefault:"10"` // megabytes
	LogMaxBackups int    `env:"DEEPAI_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"DEEPAI_LOG_MAX_AGE" envDefault:"28"` // days
}

// Load reads the configuration. Values from envfile fill in whatever the
// process environment does not set. An empty envfile means ./.env if it
// exists.
func Load(envfile string) (Config, error) {
	environ := map[string]string{}

	if envfile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envfile = ".env"
		}
	}
	if envfile != "" {
		values, err := godotenv.Read(envfile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read env file %s: %w", envfile, err)
		}
		for k, v := range values {
			environ[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}

	var cfg Config
	if err := env.Parse(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to locate home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".deepai")
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	if cfg.Log == "" {
		cfg.Log = filepath.Join(cfg.DataDir, "logs", "deepai.log")
	}
	cfg.Log = expandHome(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DEEPAI_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	switch c.Storage {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("DEEPAI_STORAGE must be %q or %q, got %q", StorageFile, StorageSQLite, c.Storage)
	}
	if c.ContextSize < 1 {
		return errors.New("DEEPAI_CONTEXT_SIZE must be at least 1")
	}
	if c.Timeout < 0 {
		return errors.New("DEEPAI_TIMEOUT must not be negative")
	}
	return nil
}

// Level maps LogLevel to a slog level. Unknown names mean INFO.
func (c Config) Level() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "TRACE":
		return api.LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenLog returns the rotating log file, creating its directory.
func (c Config) OpenLog() (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(c.Log), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   c.Log,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
		LocalTime:  true,
	}, nil
}

// NewLogger builds a slog logger writing to w in LogMode at Level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogMode, "JSON") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
