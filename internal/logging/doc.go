// Package logging provides logging utilities for ink.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("creating instance", "owner", owner, "name", name)
//	logging.Warn("port discovery retry", "container", name, "attempt", attempt)
//
// # User Output
//
// ink-ctl prints progress and results through a Printer bound to the
// command's writers, so tests can capture them:
//
//	p := logging.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
//	p.Info("Removing instance %s...", name)
//	p.Success("Removed instance %s", name)
//	p.Warning("Failed to remove %s: %v", name, err)
//	p.Error(err) // main reports a failed command this way
//
// Info and Success go to Out; Warning and Error go to Err, prefixed with
// ℹ, ✓, ⚠ and ✗ respectively.
package logging
