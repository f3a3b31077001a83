package cmd

import (
	"context"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/config"
)

// newApp builds the application for a command. Tests replace it.
var newApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, app.WithConfig(cfg))
}

// withApp runs fn with a freshly built App and releases it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
