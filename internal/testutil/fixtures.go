package testutil

import (
	"embed"

	"github.com/firefly-engineering/ink/internal/config"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadConfigFixture parses a TOML fixture over the defaults.
func LoadConfigFixture(name string) (*config.Config, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if err := config.Parse(string(data), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidConfig returns the valid config fixture.
func ValidConfig() (*config.Config, error) {
	return LoadConfigFixture("valid_config.toml")
}

// InvalidConfigData returns the raw invalid config fixture; it does not
// parse.
func InvalidConfigData() (string, error) {
	data, err := LoadFixture("invalid_config.toml")
	return string(data), err
}
