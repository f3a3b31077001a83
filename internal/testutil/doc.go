// Package testutil provides test fixtures and utilities.
//
// # Test Environment
//
// NewTestEnv builds a complete App over a MockRuntime, with word lists
// copied from the fixtures and every directory under t.TempDir:
//
//	env := testutil.NewTestEnv(t)
//	env.AddInstance("brave-otter", "user-1", time.Now(), 40000)
//	instances, err := env.Registry().List(ctx)
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//	fixtures/first_word_list.txt
//	fixtures/second_word_list.txt
//
//	cfg, err := testutil.ValidConfig()
//	data, err := testutil.InvalidConfigData()
package testutil
