package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database string `yaml:"database"`
	LogLevel string `yaml:"log_level"`

	// beatmap difficulty values used by the slider command
	SliderMultiplier float64 `yaml:"slider_multiplier"`
	SliderTickRate   float64 `yaml:"slider_tick_rate"`

	SnapDivisor int `yaml:"snap_divisor"`
}

func DefaultConfig() Config {
	return Config{
		Database:         "cpinfo.db",
		LogLevel:         "info",
		SliderMultiplier: 1.4,
		SliderTickRate:   1,
		SnapDivisor:      4,
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database must be set")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.SliderMultiplier <= 0 {
		return fmt.Errorf("config: slider_multiplier must be positive, got %v", c.SliderMultiplier)
	}
	if c.SliderTickRate <= 0 {
		return fmt.Errorf("config: slider_tick_rate must be positive, got %v", c.SliderTickRate)
	}
	if c.SnapDivisor < 1 {
		return fmt.Errorf("config: snap_divisor must be at least 1, got %d", c.SnapDivisor)
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log_level: %w", err)
	}
	return lvl, nil
}

func (c Config) Logger() *slog.Logger {
	lvl, _ := c.Level()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
