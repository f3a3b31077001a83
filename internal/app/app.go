// Package app provides the application context for ink-ctl.
// It allows dependency injection for testing.
package app

import (
	"context"
	"io"

	"github.com/firefly-engineering/ink/internal/audit"
	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/metrics"
	"github.com/firefly-engineering/ink/internal/names"
	"github.com/firefly-engineering/ink/internal/runtime"
)

// App holds the application dependencies
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Runtime is the container runtime
	Runtime runtime.Runtime

	// Names generates instance names
	Names instance.NameGenerator

	// Audit records lifecycle events
	Audit *audit.Logger

	// Metrics is nil when metrics are disabled
	Metrics *metrics.Metrics

	Registry *instance.Registry
}

// Option is a function that configures the App
type Option func(*App)

// WithConfig sets the configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithNames sets a custom name generator
func WithNames(g instance.NameGenerator) Option {
	return func(a *App) {
		a.Names = g
	}
}

// WithMetrics sets the metrics collectors, overriding metrics.enabled
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.Metrics = m
	}
}

// New creates a new App with the given options.
// If runtime is not provided via WithRuntime, it is selected from the
// configuration, auto-detecting when the type is "auto".
func New(ctx context.Context, opts ...Option) (*App, error) {
	app := &App{}

	for _, opt := range opts {
		opt(app)
	}

	if app.Config == nil {
		app.Config = config.Default()
	}
	cfg := app.Config

	if app.Runtime == nil {
		rt, err := runtime.New(ctx, &runtime.Config{
			Type:      runtime.RuntimeType(cfg.Runtime.Type),
			ExtraArgs: cfg.Runtime.ExtraArgs,
		})
		if err != nil {
			return nil, err
		}
		app.Runtime = rt
	}

	if app.Names == nil {
		gen, err := names.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		app.Names = gen
	}

	if app.Metrics == nil && cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
	}

	app.Audit = audit.NewLogger(cfg.AuditDir())

	app.Registry = instance.NewRegistry(app.Runtime, app.Names, instance.SettingsFromConfig(cfg),
		instance.WithAudit(app.Audit),
		instance.WithMetrics(app.Metrics),
	)

	return app, nil
}

// Close releases the runtime client, if it holds one.
func (a *App) Close() error {
	if c, ok := a.Runtime.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
