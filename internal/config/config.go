package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World   WorldConfig   `toml:"world"`
	Logging LoggingConfig `toml:"logging"`
	Runtime RuntimeConfig `toml:"runtime"`
	Content ContentConfig `toml:"content"`
}

type WorldConfig struct {
	InitialCapacity int `toml:"initial_capacity"` // entities preallocated at startup
	ColumnCapacity  int `toml:"column_capacity"`  // initial rows per archetype
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RuntimeConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	Ticks    int           `toml:"ticks"` // 0 runs until interrupted
}

type ContentConfig struct {
	Prefabs string `toml:"prefabs"` // YAML prefab file, empty to skip
	Scripts string `toml:"scripts"` // directory of .lua files, empty to skip
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		World: WorldConfig{
			InitialCapacity: 1024,
			ColumnCapacity:  16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Runtime: RuntimeConfig{
			TickRate: 50 * time.Millisecond,
			Ticks:    100,
		},
		Content: ContentConfig{
			Prefabs: "data/prefabs.yaml",
			Scripts: "scripts",
		},
	}
}

func (c *Config) validate() error {
	if c.World.InitialCapacity < 0 {
		return fmt.Errorf("world.initial_capacity must not be negative, got %d", c.World.InitialCapacity)
	}
	if c.World.ColumnCapacity < 0 {
		return fmt.Errorf("world.column_capacity must not be negative, got %d", c.World.ColumnCapacity)
	}
	if c.Runtime.TickRate <= 0 {
		return fmt.Errorf("runtime.tick_rate must be positive, got %s", c.Runtime.TickRate)
	}
	if c.Runtime.Ticks < 0 {
		return fmt.Errorf("runtime.ticks must not be negative, got %d", c.Runtime.Ticks)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
