// Package testutil provides test utilities for integration tests
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firefly-engineering/ink/internal/app"
	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/metrics"
	"github.com/firefly-engineering/ink/internal/runtime"
)

// TestEnv holds the test environment
type TestEnv struct {
	T       *testing.T
	TmpDir  string
	Config  *config.Config
	Runtime *runtime.MockRuntime
	Metrics *metrics.Metrics
	App     *app.App
}

// NewTestEnv creates a new test environment with mock runtime, word lists
// from the fixtures and a state dir under t.TempDir.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.StateDir = filepath.Join(tmpDir, "state")
	cfg.ResourcesDir = filepath.Join(tmpDir, "resources")
	cfg.StaticDir = filepath.Join(tmpDir, "www")
	cfg.Instances.PortDiscoveryInterval = time.Millisecond

	for _, dir := range []string{cfg.StateDir, cfg.ResourcesDir, cfg.StaticDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	for _, name := range []string{config.FirstWordList, config.SecondWordList} {
		data, err := LoadFixture(name)
		if err != nil {
			t.Fatalf("Failed to load fixture %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(cfg.ResourcesDir, name), data, 0644); err != nil {
			t.Fatalf("Failed to write word list: %v", err)
		}
	}

	mockRuntime := runtime.NewMockRuntime()
	m := metrics.New()

	testApp, err := app.New(context.Background(),
		app.WithConfig(cfg),
		app.WithRuntime(mockRuntime),
		app.WithMetrics(m),
	)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	return &TestEnv{
		T:       t,
		TmpDir:  tmpDir,
		Config:  cfg,
		Runtime: mockRuntime,
		Metrics: m,
		App:     testApp,
	}
}

// Registry returns the environment's instance registry.
func (e *TestEnv) Registry() *instance.Registry {
	return e.App.Registry
}

// AddInstance adds a running, marked instance container to the mock runtime.
func (e *TestEnv) AddInstance(name, owner string, created time.Time, hostPort int) {
	e.T.Helper()

	rc := e.Config.Runtime
	labels := map[string]string{
		rc.MarkerLabel: "true",
		rc.OwnerLabel:  owner,
	}
	e.Runtime.AddContainer(e.Config.ContainerName(name), rc.Image, labels, created, rc.ServicePort, hostPort)
}

// WriteStatic writes a file under the static directory.
func (e *TestEnv) WriteStatic(name, content string) {
	e.T.Helper()

	path := filepath.Join(e.Config.StaticDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create static dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.T.Fatalf("Failed to write static file: %v", err)
	}
}
