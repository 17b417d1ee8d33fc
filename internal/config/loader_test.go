package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TIMETRACKER_HTTP_PORT",
		"TIMETRACKER_SQLITE_DSN",
		"TIMETRACKER_REDIS_ADDR",
		"TIMETRACKER_REDIS_PASSWORD",
		"TIMETRACKER_EVENT_CHANNEL",
		"TIMETRACKER_CACHE_TTL",
		"TIMETRACKER_TASKS_API_URL",
		"TIMETRACKER_TASKS_API_TOKEN",
		"TIMETRACKER_TASKS_API_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMETRACKER_TASKS_API_TOKEN", "token-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.EventChannel != "timer:session-changes" {
		t.Errorf("unexpected event channel %q", cfg.EventChannel)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected cache ttl %v", cfg.CacheTTL)
	}
	if cfg.TasksAPIToken != "token-123" {
		t.Errorf("unexpected token %q", cfg.TasksAPIToken)
	}
	if cfg.TasksAPITimeout != 15*time.Second {
		t.Errorf("unexpected tasks timeout %v", cfg.TasksAPITimeout)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMETRACKER_TASKS_API_TOKEN", "token-123")
	t.Setenv("TIMETRACKER_HTTP_PORT", "9090")
	t.Setenv("TIMETRACKER_SQLITE_DSN", "file:custom.db")
	t.Setenv("TIMETRACKER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TIMETRACKER_CACHE_TTL", "90s")
	t.Setenv("TIMETRACKER_TASKS_API_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("unexpected port %d", cfg.HTTPPort)
	}
	if cfg.SQLiteDSN != "file:custom.db" {
		t.Errorf("unexpected dsn %q", cfg.SQLiteDSN)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("unexpected ttl %v", cfg.CacheTTL)
	}
	if cfg.TasksAPITimeout != 3*time.Second {
		t.Errorf("unexpected timeout %v", cfg.TasksAPITimeout)
	}
}

func TestLoadRequiresTasksAPIToken(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error for the missing token")
	}
	if !strings.Contains(err.Error(), "TIMETRACKER_TASKS_API_TOKEN") {
		t.Fatalf("error should name the missing variable, got %v", err)
	}
}

func TestLoadReportsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMETRACKER_TASKS_API_TOKEN", "token-123")
	t.Setenv("TIMETRACKER_HTTP_PORT", "not-a-port")
	t.Setenv("TIMETRACKER_CACHE_TTL", "-10s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error for invalid values")
	}
	for _, name := range []string{"TIMETRACKER_HTTP_PORT", "TIMETRACKER_CACHE_TTL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should name %s, got %v", name, err)
		}
	}
}
