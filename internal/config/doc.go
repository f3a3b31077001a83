// Package config provides configuration types and loading for ink.
//
// # Configuration File
//
// Configuration is read from a TOML file (/etc/ink/config.toml unless
// --config says otherwise) and decoded over Default(). A missing file at the
// default location is not an error.
//
//	listen = "0.0.0.0:8000"
//
//	[runtime]
//	image = "squittal"
//	container_prefix = "squittal-"
//
//	[instances]
//	capacity = 5
//	retention = "2h"
//
// Durations are written as Go duration strings. Unknown keys are rejected.
//
// # Paths
//
// Word lists and static assets are resolved with ResourcePath and StaticPath,
// which confine the result to their base directory even in the presence of
// symlinks.
//
// # Validation
//
// Parse and Load call Validate after decoding.
package config
