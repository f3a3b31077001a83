// Package runtime provides a unified interface for container runtimes.
//
// Supported runtimes:
//   - engine: the Docker Engine API, through the official client
//   - docker: the docker CLI
//   - podman: the podman CLI
//
// Runtime selection is automatic by default: the engine API is used when the
// daemon answers a ping, otherwise the first CLI on PATH.
//
// # Runtime Interface
//
// The Runtime interface defines the operations ink needs:
//   - Create, Start, Stop, Remove: Container lifecycle
//   - List, Inspect: Container queries, including published host ports
//   - Images: Image lookup by reference
//   - Ping: Reachability
//
// List only reports running containers, matching the runtime's own default.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create an in-memory implementation
// with error injection, a call log, and a configurable delay before started
// containers publish their port.
package runtime
