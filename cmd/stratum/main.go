package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/config"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
	"github.com/stratum-ecs/stratum/internal/prefab"
	"github.com/stratum-ecs/stratum/internal/scripting"
	"github.com/stratum-ecs/stratum/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/stratum.toml"
	if p := os.Getenv("STRATUM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && os.Getenv("STRATUM_CONFIG") == "" {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Create world and register components
	world := ecs.NewWorld(log,
		ecs.WithCapacity(cfg.World.InitialCapacity),
		ecs.WithColumnCapacity(cfg.World.ColumnCapacity),
	)
	if err := component.RegisterAll(world); err != nil {
		return err
	}

	// 4. Load content
	var prefabs *prefab.Library
	if cfg.Content.Prefabs != "" {
		prefabs, err = prefab.Load(cfg.Content.Prefabs, log)
		if err != nil {
			return err
		}
	}
	lua, err := scripting.NewEngine(cfg.Content.Scripts, world, prefabs, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()

	// 5. Create systems and register with runner
	runner := coresys.NewRunner(world, log)
	runner.Register(system.NewSignalSystem(world))
	runner.Register(system.NewScriptSystem(lua))
	runner.Register(system.NewMovementSystem(world))
	runner.Register(system.NewLifetimeSystem(world))
	runner.Register(system.NewHierarchySystem(world))
	runner.Register(system.NewDescribeSystem(world, log))
	runner.Register(system.NewCleanupSystem(world, log))

	// 6. Start loop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Runtime.TickRate)
	defer ticker.Stop()

	log.Info("loop started",
		zap.Duration("tick_rate", cfg.Runtime.TickRate),
		zap.Int("ticks", cfg.Runtime.Ticks))

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Runtime.TickRate)
			if cfg.Runtime.Ticks > 0 && runner.Ticks() >= uint64(cfg.Runtime.Ticks) {
				log.Info("tick limit reached",
					zap.Uint64("ticks", runner.Ticks()),
					zap.Int("entities", world.Len()))
				return nil
			}
		case <-ctx.Done():
			log.Info("shutdown",
				zap.Uint64("ticks", runner.Ticks()),
				zap.Int("entities", world.Len()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
