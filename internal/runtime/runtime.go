// Package runtime defines the container runtime interface for ink.
// The runtime is the only source of truth for which instances exist; ink
// keeps no records of its own.
package runtime

import (
	"context"
	"time"
)

// PortBinding is one published port of a container.
type PortBinding struct {
	ContainerPort int
	Protocol      string
	HostIP        string
	HostPort      int
}

// Container is a container as reported by the runtime's list operation.
type Container struct {
	ID      string
	Name    string // without the leading "/"
	Image   string
	State   string
	Created time.Time
	Labels  map[string]string
	Ports   []PortBinding
}

// HostPort returns the host port published for containerPort over tcp, or 0
// when none has been assigned yet.
func (c *Container) HostPort(containerPort int) int {
	for _, p := range c.Ports {
		if p.ContainerPort != containerPort || p.HostPort == 0 {
			continue
		}
		if p.Protocol == "" || p.Protocol == "tcp" {
			return p.HostPort
		}
	}
	return 0
}

// ContainerDetails is the result of inspecting a single container.
type ContainerDetails struct {
	Container
	Running bool
}

// Filter selects containers in List. Empty fields do not constrain the
// result. Name matching follows the runtime and is a substring match.
type Filter struct {
	Ancestor string
	Labels   map[string]string
	Name     string
}

// CreateOptions holds options for creating a container
type CreateOptions struct {
	Name          string
	Image         string
	ContainerPort int               // exposed and published on a runtime-chosen host port
	BindIP        string            // host address the port is published on
	Labels        map[string]string
	Network       string            // optional network to attach to
	ExtraArgs     []string          // CLI runtimes only
}

// Runtime is the interface that container backends must implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "engine", "docker")
	Name() string

	// Ping checks that the runtime is reachable
	Ping(ctx context.Context) error

	// List returns running containers matching the filter
	List(ctx context.Context, filter Filter) ([]Container, error)

	// Inspect returns details about a single container
	Inspect(ctx context.Context, name string) (*ContainerDetails, error)

	// Images returns the ids of images matching a reference
	Images(ctx context.Context, reference string) ([]string, error)

	// Create creates a new container but does not start it
	Create(ctx context.Context, opts CreateOptions) (string, error)

	// Start starts an existing container
	Start(ctx context.Context, name string) error

	// Stop stops a running container
	Stop(ctx context.Context, name string) error

	// Remove deletes a stopped container
	Remove(ctx context.Context, name string) error
}

func protocolOrTCP(p string) string {
	if p == "" {
		return "tcp"
	}
	return p
}
