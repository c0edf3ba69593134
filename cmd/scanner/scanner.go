package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/udovicic/security-scanner-sub004/internal/engine"
	"github.com/udovicic/security-scanner-sub004/internal/log"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/pool"
	"github.com/udovicic/security-scanner-sub004/internal/probe"
	"github.com/udovicic/security-scanner-sub004/internal/retry"
	"github.com/udovicic/security-scanner-sub004/internal/service"
	"github.com/udovicic/security-scanner-sub004/internal/timeout"
)

// buildEngine wires registry, pool, timeout and retry controllers from the
// validated configuration.
func buildEngine(cfg model.Config) (*engine.Engine, error) {
	registry := probe.NewRegistry()
	if err := probe.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("registering probes: %w", err)
	}

	engCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{}

	if pc := cfg.Engine.Pool; pc != nil {
		poolCfg := pool.Config{}
		if pc.Size != nil {
			poolCfg.Size = *pc.Size
		}
		if pc.MaxConnections != nil {
			poolCfg.MaxConnections = *pc.MaxConnections
		}
		if poolCfg.MaxIdle, err = duration(pc.MaxIdle, 0); err != nil {
			return nil, fmt.Errorf("engine.pool.max_idle: %w", err)
		}
		if poolCfg.MaxAge, err = duration(pc.MaxAge, 0); err != nil {
			return nil, fmt.Errorf("engine.pool.max_age: %w", err)
		}
		opts = append(opts, engine.WithPool(pool.New(poolCfg)))
	}

	if tc := cfg.Engine.Timeout; tc != nil {
		toCfg := timeout.Config{}
		if toCfg.Default, err = duration(tc.Default, 0); err != nil {
			return nil, fmt.Errorf("engine.timeout.default: %w", err)
		}
		if toCfg.Min, err = duration(tc.Min, 0); err != nil {
			return nil, fmt.Errorf("engine.timeout.min: %w", err)
		}
		if toCfg.Max, err = duration(tc.Max, 0); err != nil {
			return nil, fmt.Errorf("engine.timeout.max: %w", err)
		}
		var strategy timeout.Strategy
		if tc.Strategy != nil && *tc.Strategy == "polling" {
			strategy = timeout.PollingStrategy{}
		}
		opts = append(opts, engine.WithTimeoutController(timeout.NewController(toCfg, strategy)))
	}

	if rc := cfg.Engine.Retry; rc != nil {
		reCfg := retry.Config{}
		if rc.MaxRetries != nil {
			reCfg.MaxRetries = *rc.MaxRetries
		}
		if rc.Multiplier != nil {
			reCfg.Multiplier = *rc.Multiplier
		}
		if rc.JitterMax != nil {
			reCfg.JitterMax = *rc.JitterMax
		}
		if reCfg.BaseDelay, err = duration(rc.BaseDelay, 0); err != nil {
			return nil, fmt.Errorf("engine.retry.base_delay: %w", err)
		}
		if reCfg.MaxDelay, err = duration(rc.MaxDelay, 0); err != nil {
			return nil, fmt.Errorf("engine.retry.max_delay: %w", err)
		}
		opts = append(opts, engine.WithRetryController(retry.New(reCfg)))
	}

	return engine.New(engCfg, registry, opts...), nil
}

func engineConfig(ec model.EngineConfig) (engine.Config, error) {
	cfg := engine.Config{}
	if ec.ParallelExecution != nil {
		cfg.ParallelExecution = *ec.ParallelExecution
	}
	if ec.MaxParallelTests != nil {
		cfg.MaxParallelTests = *ec.MaxParallelTests
	}
	if ec.EnableTimeouts != nil {
		cfg.EnableTimeouts = *ec.EnableTimeouts
	}
	if ec.EnableRetries != nil {
		cfg.EnableRetries = *ec.EnableRetries
	}
	if ec.EnableResultInversion != nil {
		cfg.EnableResultInversion = *ec.EnableResultInversion
	}
	if ec.InversionRule != nil {
		cfg.InversionRule = *ec.InversionRule
	}
	if ec.FailFast != nil {
		cfg.FailFast = *ec.FailFast
	}
	var err error
	if cfg.ExecutionTimeout, err = duration(ec.ExecutionTimeout, 0); err != nil {
		return engine.Config{}, fmt.Errorf("engine.execution_timeout: %w", err)
	}
	return cfg, nil
}

func duration(s *string, fallback time.Duration) (time.Duration, error) {
	if s == nil || *s == "" {
		return fallback, nil
	}
	return time.ParseDuration(*s)
}

// doScan runs every configured batch once and prints the reports to stdout,
// regardless of the service mode in the config.
func doScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("scanner",
		slog.String("cmd", "scan"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	cfg := config
	cfg.Service.Mode = model.ServiceModeManual

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	supervisor, err := service.NewSupervisor(ctx, cfg, eng)
	if err != nil {
		return err
	}
	supervisor.WithUploaders(ctx, service.NewWriteUploader(os.Stdout))
	return supervisor.Do(ctx)
}

func doProbes(cmd *cobra.Command, args []string) error {
	registry := probe.NewRegistry()
	if err := probe.RegisterBuiltins(registry); err != nil {
		return err
	}
	for _, name := range registry.Names() {
		fmt.Println(name)
	}
	return nil
}
