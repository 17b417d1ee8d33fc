package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the timer service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	RedisAddr       string
	RedisPassword   string
	EventChannel    string
	CacheTTL        time.Duration
	TasksAPIURL     string
	TasksAPIToken   string
	TasksAPITimeout time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields receive defaults; required values are validated and all
// missing or malformed entries are reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:timetracker.db?_pragma=foreign_keys(1)",
		RedisAddr:       "localhost:6379",
		EventChannel:    "timer:session-changes",
		CacheTTL:        5 * time.Minute,
		TasksAPIURL:     "https://api.monday.com/v2",
		TasksAPITimeout: 15 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("TIMETRACKER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TIMETRACKER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("TIMETRACKER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if addr := strings.TrimSpace(os.Getenv("TIMETRACKER_REDIS_ADDR")); addr != "" {
		cfg.RedisAddr = addr
	}
	cfg.RedisPassword = os.Getenv("TIMETRACKER_REDIS_PASSWORD")

	if channel := strings.TrimSpace(os.Getenv("TIMETRACKER_EVENT_CHANNEL")); channel != "" {
		cfg.EventChannel = channel
	}

	if ttlValue := strings.TrimSpace(os.Getenv("TIMETRACKER_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "TIMETRACKER_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if apiURL := strings.TrimSpace(os.Getenv("TIMETRACKER_TASKS_API_URL")); apiURL != "" {
		cfg.TasksAPIURL = apiURL
	}

	if token := strings.TrimSpace(os.Getenv("TIMETRACKER_TASKS_API_TOKEN")); token == "" {
		missing = append(missing, "TIMETRACKER_TASKS_API_TOKEN")
	} else {
		cfg.TasksAPIToken = token
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("TIMETRACKER_TASKS_API_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "TIMETRACKER_TASKS_API_TIMEOUT")
		} else {
			cfg.TasksAPITimeout = timeout
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
