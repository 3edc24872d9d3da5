package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds perch's runtime settings.
type Config struct {
	Server         string
	Capacity       int
	ReconnectDelay time.Duration
	StatusPoll     time.Duration
	LogFile        string
}

const (
	defaultConfigPath     = "~/.config/perch/config.toml"
	defaultServer         = "127.0.0.1:8080"
	defaultCapacity       = 10000
	defaultReconnectDelay = 2 * time.Second
	defaultStatusPoll     = 5 * time.Second
	defaultLogFile        = "~/.local/state/perch/perch.log"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:         defaultServer,
		Capacity:       defaultCapacity,
		ReconnectDelay: defaultReconnectDelay,
		StatusPoll:     defaultStatusPoll,
		LogFile:        mustExpand(defaultLogFile),
	}
}

// Load reads the config at path (or the default path), falling back to
// defaults when the file is missing or a value is blank.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Server         string `toml:"server"`
		Capacity       int    `toml:"capacity"`
		ReconnectDelay string `toml:"reconnect_delay"`
		StatusPoll     string `toml:"status_poll"`
		LogFile        string `toml:"log_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if server := strings.TrimSpace(raw.Server); server != "" {
		cfg.Server = server
	}
	if raw.Capacity < 0 {
		return Config{}, fmt.Errorf("parse config: capacity must be positive, got %d", raw.Capacity)
	}
	if raw.Capacity > 0 {
		cfg.Capacity = raw.Capacity
	}
	if cfg.ReconnectDelay, err = parseDuration("reconnect_delay", raw.ReconnectDelay, defaultReconnectDelay); err != nil {
		return Config{}, err
	}
	if cfg.StatusPoll, err = parseDuration("status_poll", raw.StatusPoll, defaultStatusPoll); err != nil {
		return Config{}, err
	}
	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}

	return cfg, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse config: %s must be positive, got %s", field, value)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
