package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
)

// EngineRuntime implements the Runtime interface against the Docker Engine
// API. It works with any daemon speaking that API, including podman's
// compatibility socket.
type EngineRuntime struct {
	client *client.Client
}

// NewEngineRuntime creates a client from the standard environment
// (DOCKER_HOST, DOCKER_CERT_PATH, ...) with API version negotiation.
func NewEngineRuntime() (*EngineRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.RuntimeUnavailable("client setup", err)
	}
	return &EngineRuntime{client: cli}, nil
}

// Name returns the runtime identifier
func (r *EngineRuntime) Name() string {
	return string(RuntimeEngine)
}

// Close releases the underlying client.
func (r *EngineRuntime) Close() error {
	return r.client.Close()
}

func (r *EngineRuntime) wrap(op, name string, err error) error {
	if client.IsErrNotFound(err) {
		return errors.InstanceNotFound(name)
	}
	return errors.RuntimeUnavailable(op, err)
}

// Ping checks that the daemon answers.
func (r *EngineRuntime) Ping(ctx context.Context) error {
	if _, err := r.client.Ping(ctx); err != nil {
		return errors.RuntimeUnavailable("ping", err)
	}
	return nil
}

func filterArgs(f Filter) filters.Args {
	args := filters.NewArgs()
	if f.Ancestor != "" {
		args.Add("ancestor", f.Ancestor)
	}
	for k, v := range f.Labels {
		args.Add("label", k+"="+v)
	}
	if f.Name != "" {
		args.Add("name", f.Name)
	}
	return args
}

// List returns running containers matching the filter.
func (r *EngineRuntime) List(ctx context.Context, f Filter) ([]Container, error) {
	summaries, err := r.client.ContainerList(ctx, container.ListOptions{Filters: filterArgs(f)})
	if err != nil {
		return nil, errors.RuntimeUnavailable("list", err)
	}

	result := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		c := Container{
			ID:      s.ID,
			Image:   s.Image,
			State:   s.State,
			Created: time.Unix(s.Created, 0),
			Labels:  s.Labels,
		}
		if len(s.Names) > 0 {
			c.Name = strings.TrimPrefix(s.Names[0], "/")
		}
		for _, p := range s.Ports {
			c.Ports = append(c.Ports, PortBinding{
				ContainerPort: int(p.PrivatePort),
				Protocol:      p.Type,
				HostIP:        p.IP,
				HostPort:      int(p.PublicPort),
			})
		}
		result = append(result, c)
	}

	return result, nil
}

// Inspect returns details about a single container.
func (r *EngineRuntime) Inspect(ctx context.Context, name string) (*ContainerDetails, error) {
	info, err := r.client.ContainerInspect(ctx, name)
	if err != nil {
		return nil, r.wrap("inspect", name, err)
	}

	details := &ContainerDetails{
		Container: Container{
			ID:   info.ID,
			Name: strings.TrimPrefix(info.Name, "/"),
		},
	}
	if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		details.Created = created
	}
	if info.State != nil {
		details.State = info.State.Status
		details.Running = info.State.Running
	}
	if info.Config != nil {
		details.Image = info.Config.Image
		details.Labels = info.Config.Labels
	}
	if info.NetworkSettings != nil {
		details.Ports = bindingsFromPortMap(info.NetworkSettings.Ports)
	}

	return details, nil
}

func bindingsFromPortMap(ports nat.PortMap) []PortBinding {
	var result []PortBinding
	for port, bindings := range ports {
		for _, b := range bindings {
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			result = append(result, PortBinding{
				ContainerPort: port.Int(),
				Protocol:      port.Proto(),
				HostIP:        b.HostIP,
				HostPort:      hostPort,
			})
		}
	}
	return result
}

// Images returns the ids of images matching a reference.
func (r *EngineRuntime) Images(ctx context.Context, reference string) ([]string, error) {
	summaries, err := r.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", reference)),
	})
	if err != nil {
		return nil, errors.RuntimeUnavailable("image list", err)
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Create creates a container publishing opts.ContainerPort on a host port
// chosen by the daemon.
func (r *EngineRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	logging.Debug("creating container", "name", opts.Name, "runtime", r.Name())

	port, err := nat.NewPort("tcp", strconv.Itoa(opts.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", opts.ContainerPort, err)
	}

	cfg := &container.Config{
		Image:        opts.Image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       opts.Labels,
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: opts.BindIP}},
		},
	}
	if opts.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.Network)
	}

	resp, err := r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return "", errors.RuntimeUnavailable("create", err)
	}
	for _, w := range resp.Warnings {
		logging.Warn("container create warning", "name", opts.Name, "warning", w)
	}

	return resp.ID, nil
}

// Start starts an existing container
func (r *EngineRuntime) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)
	if err := r.client.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return r.wrap("start", name, err)
	}
	return nil
}

// Stop stops a running container
func (r *EngineRuntime) Stop(ctx context.Context, name string) error {
	logging.Debug("stopping container", "container", name)
	if err := r.client.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return r.wrap("stop", name, err)
	}
	return nil
}

// Remove deletes a stopped container
func (r *EngineRuntime) Remove(ctx context.Context, name string) error {
	logging.Debug("removing container", "container", name)
	if err := r.client.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		return r.wrap("remove", name, err)
	}
	return nil
}
