package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/system"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeEngine RuntimeType = "engine"
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAuto   RuntimeType = "auto"
)

// pingTimeout bounds the engine probe during auto-detection.
const pingTimeout = 2 * time.Second

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use (or "auto" for auto-detection)
	Type RuntimeType

	// ExtraArgs is a shell-quoted string of extra create flags (CLI runtimes only)
	ExtraArgs string

	// Executor runs CLI commands; nil means the OS executor
	Executor system.CommandExecutor
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{
		Type: RuntimeAuto,
	}
}

// Detect determines which container runtime is available on the system.
// The engine API is preferred when the daemon answers; otherwise the first
// CLI found on PATH is used.
func Detect(ctx context.Context, exec system.CommandExecutor) (RuntimeType, error) {
	if exec == nil {
		exec = system.DefaultExecutor()
	}

	if engine, err := NewEngineRuntime(); err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = engine.Ping(pingCtx)
		cancel()
		_ = engine.Close()
		if err == nil {
			logging.Debug("detected engine API")
			return RuntimeEngine, nil
		}
		logging.Debug("engine API not reachable", "error", err)
	}

	for _, rt := range []RuntimeType{RuntimeDocker, RuntimePodman} {
		if _, err := exec.LookPath(string(rt)); err == nil {
			logging.Debug("detected container CLI", "runtime", rt)
			return rt, nil
		}
	}

	return "", errors.RuntimeUnavailable("detect",
		fmt.Errorf("no supported container runtime found (tried: engine API, docker, podman)"))
}

// New creates a new Runtime based on the configuration.
// If Type is RuntimeAuto, it auto-detects the best runtime.
func New(ctx context.Context, cfg *Config) (Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	runtimeType := cfg.Type
	if runtimeType == RuntimeAuto || runtimeType == "" {
		detected, err := Detect(ctx, cfg.Executor)
		if err != nil {
			return nil, err
		}
		runtimeType = detected
	}

	logging.Debug("creating runtime", "type", runtimeType)

	switch runtimeType {
	case RuntimeEngine:
		return NewEngineRuntime()

	case RuntimeDocker, RuntimePodman:
		return NewCLIRuntime(string(runtimeType), cfg.ExtraArgs, cfg.Executor)

	default:
		return nil, errors.ConfigurationError(fmt.Sprintf("unknown runtime type: %s", runtimeType), nil)
	}
}

// Available returns a list of container CLIs found on PATH
func Available(exec system.CommandExecutor) []RuntimeType {
	if exec == nil {
		exec = system.DefaultExecutor()
	}

	var available []RuntimeType
	for _, rt := range []RuntimeType{RuntimeDocker, RuntimePodman} {
		if _, err := exec.LookPath(string(rt)); err == nil {
			available = append(available, rt)
		}
	}
	return available
}
