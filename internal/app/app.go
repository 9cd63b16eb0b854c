package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	policy *config.Model
}

// NewApp is the constructor for the main application. The annotated trace
// goes to outW and diagnostics to logW. When cfg names a policy file it is
// read with loader; a policy that cannot be loaded is a fatal startup
// error and panics.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	policy := config.Default()
	if cfg.ConfigPath != "" {
		if loader == nil {
			panic(fmt.Errorf("no loader for policy file %s", cfg.ConfigPath))
		}
		var err error
		policy, err = loader.Load(ctx, cfg.ConfigPath)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		logger.Debug("Policy loaded.", "path", cfg.ConfigPath)
	}
	if cfg.ShowMemory {
		policy.Layout.ShowMemory = true
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		policy: policy,
	}
}

// Policy returns the effective policy. This is primarily for testing.
func (a *App) Policy() *config.Model {
	return a.policy
}

// StartupPanicError converts a value recovered from a NewApp panic into an
// error.
func StartupPanicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("application startup panicked: %w", err)
	}
	return fmt.Errorf("application startup panicked: %v", r)
}
