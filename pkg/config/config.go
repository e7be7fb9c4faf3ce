package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
	"github.com/small-frappuccino/discorddeck/pkg/util"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "DISCORDDECK_"

// Config is the runtime configuration read from the environment.
type Config struct {
	Token    string `env:"TOKEN"`
	BotToken bool   `env:"BOT_TOKEN" envDefault:"false"`

	Store           string `env:"STORE" envDefault:"sqlite"`
	StorePath       string `env:"STORE_PATH"`
	MemoryCacheSize int    `env:"MEMORY_CACHE_SIZE" envDefault:"256"`

	PageSize                  int           `env:"PAGE_SIZE" envDefault:"20"`
	RefreshGuildConcurrency   int           `env:"REFRESH_GUILD_CONCURRENCY" envDefault:"2"`
	RefreshMessageConcurrency int           `env:"REFRESH_MESSAGE_CONCURRENCY" envDefault:"5"`
	RefreshMessageLimit       int           `env:"REFRESH_MESSAGE_LIMIT" envDefault:"50"`
	RefreshInterval           time.Duration `env:"REFRESH_INTERVAL" envDefault:"0s"`
	ReadyTimeout              time.Duration `env:"READY_TIMEOUT" envDefault:"30s"`

	// GatewayPerfThreshold is the handler duration above which a slow-handler warning is
	// logged. Zero disables timing.
	GatewayPerfThreshold time.Duration `env:"GATEWAY_PERF_THRESHOLD" envDefault:"200ms"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir        string `env:"LOG_DIR"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
}

// Load reads the $HOME/.local/bin/.env fallback (without overriding the process
// environment), parses Config, fills path defaults and validates the result.
func Load() (Config, error) {
	util.LoadLocalBinEnv()
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom parses Config from the given variables only. Used by tests and embedders.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyPathDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyPathDefaults() {
	if c.StorePath == "" && c.Store != storage.BackendMemory {
		c.StorePath = util.GetStorePath(c.Store)
	}
	if c.LogDir == "" {
		c.LogDir = util.GetLogDir()
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Store {
	case storage.BackendSQLite, storage.BackendBadger, storage.BackendMemory:
	default:
		return fmt.Errorf("%s%s: %w: %q", EnvPrefix, "STORE", errors.ErrUnknownBackend, c.Store)
	}
	positive := []struct {
		name  string
		value int
	}{
		{"PAGE_SIZE", c.PageSize},
		{"REFRESH_GUILD_CONCURRENCY", c.RefreshGuildConcurrency},
		{"REFRESH_MESSAGE_CONCURRENCY", c.RefreshMessageConcurrency},
		{"REFRESH_MESSAGE_LIMIT", c.RefreshMessageLimit},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s%s must be positive, got %d", EnvPrefix, p.name, p.value)
		}
	}
	if c.PageSize > 100 || c.RefreshMessageLimit > 100 {
		return fmt.Errorf("page size and refresh message limit are capped at 100 by the Discord API")
	}
	if c.MemoryCacheSize < 0 {
		return fmt.Errorf("%sMEMORY_CACHE_SIZE must not be negative", EnvPrefix)
	}
	if c.RefreshInterval < 0 || c.ReadyTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// RequireToken returns the configured token or an error naming the variable to set.
func (c Config) RequireToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	return "", fmt.Errorf("%sTOKEN is not set", EnvPrefix)
}
