// Package app provides the application context for ink-ctl.
//
// This package wires the configuration into the components that share it,
// using the functional options pattern so tests can substitute any of them.
//
// # App Context
//
//	type App struct {
//	    Config   *config.Config          // Loaded configuration
//	    Runtime  runtime.Runtime         // Container runtime
//	    Names    instance.NameGenerator  // Word-list name generator
//	    Audit    *audit.Logger           // Lifecycle event log
//	    Metrics  *metrics.Metrics        // Prometheus collectors
//	    Registry *instance.Registry      // Instance registry
//	}
//
// # Creating an App
//
//	// Production usage
//	a, err := app.New(ctx, app.WithConfig(cfg))
//
//	// Testing with custom dependencies
//	a, err := app.New(ctx,
//	    app.WithConfig(cfg),
//	    app.WithRuntime(mockRuntime),
//	    app.WithNames(fixedNames),
//	)
package app
