package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Instances.Capacity != 5 {
		t.Errorf("Capacity = %d, want 5", cfg.Instances.Capacity)
	}
	if cfg.Instances.Retention != 2*time.Hour {
		t.Errorf("Retention = %v, want 2h", cfg.Instances.Retention)
	}
	if cfg.Cleanup.Interval != 5*time.Second {
		t.Errorf("Cleanup.Interval = %v, want 5s", cfg.Cleanup.Interval)
	}
	if cfg.Runtime.ServicePort != 8080 {
		t.Errorf("ServicePort = %d, want 8080", cfg.Runtime.ServicePort)
	}
	if len(cfg.Proxy.DeniedPrefixes) != 3 {
		t.Errorf("DeniedPrefixes = %v, want 3 entries", cfg.Proxy.DeniedPrefixes)
	}
}

func TestContainerName(t *testing.T) {
	cfg := Default()
	tests := []struct {
		name string
		want string
	}{
		{"brave-otter", "squittal-brave-otter"},
		{"", "squittal-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ContainerName(tt.name); got != tt.want {
				t.Errorf("ContainerName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	data := `
listen = "127.0.0.1:9000"

[runtime]
type = "podman"
image = "other"
extra_args = "--cpus 1 --memory '512m'"

[instances]
capacity = 2
retention = "90m"
port_discovery_interval = "250ms"

[proxy]
denied_prefixes = ["/admin"]

[identity]
mode = "session"
redis_addr = "redis:6379"
`
	cfg := Default()
	if err := Parse(data, cfg); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Runtime.Type != "podman" || cfg.Runtime.Image != "other" {
		t.Errorf("Runtime = %+v", cfg.Runtime)
	}
	if cfg.Runtime.ContainerPrefix != DefaultPrefix {
		t.Errorf("ContainerPrefix = %q, want default %q", cfg.Runtime.ContainerPrefix, DefaultPrefix)
	}
	if cfg.Instances.Capacity != 2 {
		t.Errorf("Capacity = %d, want 2", cfg.Instances.Capacity)
	}
	if cfg.Instances.Retention != 90*time.Minute {
		t.Errorf("Retention = %v, want 90m", cfg.Instances.Retention)
	}
	if cfg.Instances.PortDiscoveryInterval != 250*time.Millisecond {
		t.Errorf("PortDiscoveryInterval = %v, want 250ms", cfg.Instances.PortDiscoveryInterval)
	}
	if len(cfg.Proxy.DeniedPrefixes) != 1 || cfg.Proxy.DeniedPrefixes[0] != "/admin" {
		t.Errorf("DeniedPrefixes = %v", cfg.Proxy.DeniedPrefixes)
	}
	if cfg.Identity.Mode != "session" || cfg.Identity.RedisAddr != "redis:6379" {
		t.Errorf("Identity = %+v", cfg.Identity)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"unknown key", "bogus = 1", "unknown config keys"},
		{"bad toml", "listen = ", "failed to parse"},
		{"bad runtime", "[runtime]\ntype = \"lxc\"", "invalid runtime type"},
		{"zero capacity", "[instances]\ncapacity = 0", "capacity"},
		{"bad port", "[runtime]\nservice_port = 70000", "service_port"},
		{"bad bind ip", "[runtime]\nbind_ip = \"nope\"", "bind_ip"},
		{"relative prefix", "[proxy]\ndenied_prefixes = [\"DbAdmin\"]", "must start with /"},
		{"bad identity", "[identity]\nmode = \"oauth\"", "identity mode"},
		{"bad listen", "listen = \"8000\"", "listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse(tt.data, Default())
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("[instances]\ncapacity = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Instances.Capacity != 3 {
		t.Errorf("Capacity = %d, want 3", cfg.Instances.Capacity)
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Error("Load() should fail for a missing explicit path")
	}
}

func TestValidateInstanceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"generated", "brave-otter", false},
		{"digits", "a1-b2", false},
		{"empty", "", true},
		{"uppercase", "Brave-Otter", true},
		{"traversal", "../etc", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInstanceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInstanceName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestResourcePath_StaysInside(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.ResourcesDir = tmpDir

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", FirstWordList, filepath.Join(tmpDir, FirstWordList)},
		{"traversal", "../../etc/passwd", filepath.Join(tmpDir, "etc/passwd")},
		{"absolute", "/etc/passwd", filepath.Join(tmpDir, "etc/passwd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.ResourcePath(tt.input)
			if err != nil {
				t.Fatalf("ResourcePath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ResourcePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResourcePath_Symlink(t *testing.T) {
	tmpDir := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(tmpDir, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	cfg := Default()
	cfg.ResourcesDir = tmpDir

	got, err := cfg.ResourcePath("escape/file")
	if err != nil {
		t.Fatalf("ResourcePath() error = %v", err)
	}
	if strings.HasPrefix(got, outside) {
		t.Errorf("ResourcePath() = %q escaped to %q", got, outside)
	}
}
