package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"
)

const (
	DefaultConfigPath   = "/etc/ink/config.toml"
	DefaultStateDir     = "/var/lib/ink"
	DefaultListen       = "0.0.0.0:8000"
	DefaultImage        = "squittal"
	DefaultPrefix       = "squittal-"
	DefaultMarkerLabel  = "ink_tag"
	DefaultOwnerLabel   = "created_by"
	DefaultServicePort  = 8080
	DefaultCapacity     = 5
	DefaultRetention    = 2 * time.Hour
	DefaultInterval     = 5 * time.Second
	DefaultUpstreamHost = "127.0.0.1"

	FirstWordList  = "first_word_list.txt"
	SecondWordList = "second_word_list.txt"
)

// labelRegex validates label keys used as runtime filters.
var labelRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// instanceNameRegex validates names accepted on the command line and API.
// Generated names are two lowercase words joined by a hyphen.
var instanceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateInstanceName checks if an instance name is valid.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if !instanceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid instance name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// Config is the full ink configuration, loaded from TOML.
type Config struct {
	Listen       string `toml:"listen"`
	StateDir     string `toml:"state_dir"`
	StaticDir    string `toml:"static_dir"`
	ResourcesDir string `toml:"resources_dir"`

	Runtime   RuntimeConfig   `toml:"runtime"`
	Instances InstancesConfig `toml:"instances"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Identity  IdentityConfig  `toml:"identity"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// RuntimeConfig selects and parameterizes the container runtime.
type RuntimeConfig struct {
	Type            string `toml:"type"` // auto, engine, docker, podman
	Image           string `toml:"image"`
	ContainerPrefix string `toml:"container_prefix"`
	MarkerLabel     string `toml:"marker_label"`
	OwnerLabel      string `toml:"owner_label"`
	ServicePort     int    `toml:"service_port"`
	BindIP          string `toml:"bind_ip"`
	Network         string `toml:"network"`
	ExtraArgs       string `toml:"extra_args"` // CLI runtimes only, shell-quoted
}

// InstancesConfig holds the ownership and lifecycle policy.
type InstancesConfig struct {
	Capacity              int           `toml:"capacity"`
	Retention             time.Duration `toml:"retention"`
	PortDiscoveryAttempts int           `toml:"port_discovery_attempts"`
	PortDiscoveryInterval time.Duration `toml:"port_discovery_interval"`
}

type CleanupConfig struct {
	Interval time.Duration `toml:"interval"`
}

// ProxyConfig controls host-routed forwarding.
type ProxyConfig struct {
	UpstreamHost     string        `toml:"upstream_host"`
	DeniedPrefixes   []string      `toml:"denied_prefixes"`
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`
	DialTimeout      time.Duration `toml:"dial_timeout"`
}

// IdentityConfig selects how requests are mapped to users.
type IdentityConfig struct {
	Mode          string `toml:"mode"` // header or session
	UserHeader    string `toml:"user_header"`
	NameHeader    string `toml:"name_header"`
	SessionCookie string `toml:"session_cookie"`
	RedisAddr     string `toml:"redis_addr"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:       DefaultListen,
		StateDir:     DefaultStateDir,
		StaticDir:    "www",
		ResourcesDir: ".",
		Runtime: RuntimeConfig{
			Type:            "auto",
			Image:           DefaultImage,
			ContainerPrefix: DefaultPrefix,
			MarkerLabel:     DefaultMarkerLabel,
			OwnerLabel:      DefaultOwnerLabel,
			ServicePort:     DefaultServicePort,
			BindIP:          "0.0.0.0",
			Network:         "ink",
		},
		Instances: InstancesConfig{
			Capacity:              DefaultCapacity,
			Retention:             DefaultRetention,
			PortDiscoveryAttempts: 5,
			PortDiscoveryInterval: time.Second,
		},
		Cleanup: CleanupConfig{
			Interval: DefaultInterval,
		},
		Proxy: ProxyConfig{
			UpstreamHost:     DefaultUpstreamHost,
			DeniedPrefixes:   []string{"/DbAdmin", "/rulesets", "/TeamBuilder"},
			HandshakeTimeout: 5 * time.Second,
			DialTimeout:      5 * time.Second,
		},
		Identity: IdentityConfig{
			Mode:          "header",
			UserHeader:    "X-Ink-User-Id",
			NameHeader:    "X-Ink-User-Name",
			SessionCookie: "INK_SESSION",
			RedisAddr:     "127.0.0.1:6379",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the configuration at path over the defaults. A missing file at
// the default location yields the defaults; a missing file anywhere else is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := Parse(string(data), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes TOML into cfg and validates the result. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func Parse(data string, cfg *Config) error {
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	validRuntimes := map[string]bool{"auto": true, "engine": true, "docker": true, "podman": true}
	if !validRuntimes[c.Runtime.Type] {
		return fmt.Errorf("invalid runtime type: %s (must be auto, engine, docker, or podman)", c.Runtime.Type)
	}
	if c.Runtime.Image == "" {
		return fmt.Errorf("runtime.image is required")
	}
	if c.Runtime.ContainerPrefix == "" {
		return fmt.Errorf("runtime.container_prefix is required")
	}
	if !labelRegex.MatchString(c.Runtime.MarkerLabel) {
		return fmt.Errorf("invalid runtime.marker_label %q", c.Runtime.MarkerLabel)
	}
	if !labelRegex.MatchString(c.Runtime.OwnerLabel) {
		return fmt.Errorf("invalid runtime.owner_label %q", c.Runtime.OwnerLabel)
	}
	if c.Runtime.ServicePort < 1 || c.Runtime.ServicePort > 65535 {
		return fmt.Errorf("runtime.service_port must be between 1 and 65535 (got %d)", c.Runtime.ServicePort)
	}
	if c.Runtime.BindIP != "" && net.ParseIP(c.Runtime.BindIP) == nil {
		return fmt.Errorf("invalid runtime.bind_ip %q", c.Runtime.BindIP)
	}

	if c.Instances.Capacity < 1 {
		return fmt.Errorf("instances.capacity must be at least 1 (got %d)", c.Instances.Capacity)
	}
	if c.Instances.Retention <= 0 {
		return fmt.Errorf("instances.retention must be positive")
	}
	if c.Instances.PortDiscoveryAttempts < 1 {
		return fmt.Errorf("instances.port_discovery_attempts must be at least 1")
	}
	if c.Instances.PortDiscoveryInterval < 0 {
		return fmt.Errorf("instances.port_discovery_interval cannot be negative")
	}
	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup.interval must be positive")
	}

	if c.Proxy.UpstreamHost == "" {
		return fmt.Errorf("proxy.upstream_host is required")
	}
	for _, p := range c.Proxy.DeniedPrefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("proxy.denied_prefixes entry %q must start with /", p)
		}
	}
	if c.Proxy.HandshakeTimeout <= 0 || c.Proxy.DialTimeout <= 0 {
		return fmt.Errorf("proxy timeouts must be positive")
	}

	switch c.Identity.Mode {
	case "header":
		if c.Identity.UserHeader == "" {
			return fmt.Errorf("identity.user_header is required in header mode")
		}
	case "session":
		if c.Identity.SessionCookie == "" || c.Identity.RedisAddr == "" {
			return fmt.Errorf("identity.session_cookie and identity.redis_addr are required in session mode")
		}
	default:
		return fmt.Errorf("invalid identity mode: %s (must be header or session)", c.Identity.Mode)
	}

	return nil
}

// ContainerName returns the runtime container name for an instance name.
func (c *Config) ContainerName(name string) string {
	return c.Runtime.ContainerPrefix + name
}

// AuditDir is where per-instance event logs are written.
func (c *Config) AuditDir() string {
	return filepath.Join(c.StateDir, "events")
}

// ResourcePath resolves a file under ResourcesDir without letting name escape
// it, including through symlinks.
func (c *Config) ResourcePath(name string) (string, error) {
	return securePath(c.ResourcesDir, name)
}

// StaticPath resolves a request path under StaticDir.
func (c *Config) StaticPath(name string) (string, error) {
	return securePath(c.StaticDir, name)
}

func securePath(baseDir, name string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	path, err := securejoin.SecureJoin(absBase, name)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", name, err)
	}

	return path, nil
}
