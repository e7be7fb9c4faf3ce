package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	deckerrors "github.com/small-frappuccino/discorddeck/pkg/errors"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DISCORDDECK_STORE_PATH": "/tmp/deck.db", "DISCORDDECK_LOG_DIR": "/tmp/logs"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.PageSize != 20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RefreshGuildConcurrency != 2 || cfg.RefreshMessageConcurrency != 5 || cfg.RefreshMessageLimit != 50 {
		t.Fatalf("unexpected refresh defaults: %+v", cfg)
	}
	if cfg.ReadyTimeout != 30*time.Second || cfg.RefreshInterval != 0 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.StorePath != "/tmp/deck.db" {
		t.Fatalf("explicit store path overridden: %q", cfg.StorePath)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DISCORDDECK_TOKEN":            "abc",
		"DISCORDDECK_BOT_TOKEN":        "true",
		"DISCORDDECK_STORE":            "memory",
		"DISCORDDECK_PAGE_SIZE":        "50",
		"DISCORDDECK_REFRESH_INTERVAL": "15m",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.BotToken || cfg.Store != "memory" || cfg.PageSize != 50 || cfg.RefreshInterval != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.StorePath != "" {
		t.Fatalf("memory backend should not get a path, got %q", cfg.StorePath)
	}
	if tok, err := cfg.RequireToken(); err != nil || tok != "abc" {
		t.Fatalf("token: %q %v", tok, err)
	}
}

func TestLoadFromRejectsUnknownBackend(t *testing.T) {
	_, err := LoadFrom(map[string]string{"DISCORDDECK_STORE": "redis", "DISCORDDECK_STORE_PATH": "x"})
	if !errors.Is(err, deckerrors.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestValidateRejectsNonPositiveWindows(t *testing.T) {
	_, err := LoadFrom(map[string]string{"DISCORDDECK_STORE": "memory", "DISCORDDECK_REFRESH_GUILD_CONCURRENCY": "0"})
	if err == nil || !strings.Contains(err.Error(), "REFRESH_GUILD_CONCURRENCY") {
		t.Fatalf("expected concurrency error, got %v", err)
	}
}

func TestRequireTokenMissing(t *testing.T) {
	if _, err := (Config{}).RequireToken(); err == nil {
		t.Fatalf("expected missing token error")
	}
}
