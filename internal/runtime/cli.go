package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/system"
)

// CLIRuntime implements the Runtime interface by shelling out to the docker
// or podman CLI.
type CLIRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	// ExtraArgs are appended to every create invocation
	ExtraArgs []string

	exec system.CommandExecutor
}

// NewCLIRuntime creates a runtime that runs command through exec. extraArgs
// is a shell-quoted string of additional create flags.
func NewCLIRuntime(command, extraArgs string, exec system.CommandExecutor) (*CLIRuntime, error) {
	args, err := shellquote.Split(extraArgs)
	if err != nil {
		return nil, errors.ConfigurationError("invalid runtime.extra_args", err)
	}
	if exec == nil {
		exec = system.DefaultExecutor()
	}
	return &CLIRuntime{
		Command:   command,
		ExtraArgs: args,
		exec:      exec,
	}, nil
}

// Name returns the runtime identifier
func (r *CLIRuntime) Name() string {
	return r.Command
}

// runCmd executes a docker/podman command and returns its stdout.
func (r *CLIRuntime) runCmd(ctx context.Context, args ...string) (string, error) {
	logging.Debug("running container command", "cmd", r.Command+" "+shellquote.Join(args...))
	out, err := r.exec.Output(ctx, r.Command, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *CLIRuntime) wrap(op, name string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such container") || strings.Contains(msg, "no container with name") {
		return errors.InstanceNotFound(name)
	}
	return errors.RuntimeUnavailable(op, err)
}

// Ping checks that the CLI can reach its daemon.
func (r *CLIRuntime) Ping(ctx context.Context) error {
	if _, err := r.runCmd(ctx, "version", "--format", "{{.Server.Version}}"); err != nil {
		return errors.RuntimeUnavailable("ping", err)
	}
	return nil
}

// filterFlags renders a Filter as --filter arguments. Labels are sorted so
// that the command line is stable.
func filterFlags(f Filter) []string {
	var args []string
	if f.Ancestor != "" {
		args = append(args, "--filter", "ancestor="+f.Ancestor)
	}
	keys := make([]string, 0, len(f.Labels))
	for k := range f.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--filter", "label="+k+"="+f.Labels[k])
	}
	if f.Name != "" {
		args = append(args, "--filter", "name="+f.Name)
	}
	return args
}

// List returns running containers matching the filter. Ids come from ps and
// details from a single inspect call.
func (r *CLIRuntime) List(ctx context.Context, f Filter) ([]Container, error) {
	args := append([]string{"ps", "-q", "--no-trunc"}, filterFlags(f)...)
	out, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, errors.RuntimeUnavailable("list", err)
	}

	ids := strings.Fields(out)
	if len(ids) == 0 {
		return []Container{}, nil
	}

	out, err = r.runCmd(ctx, append([]string{"inspect"}, ids...)...)
	if err != nil {
		return nil, errors.RuntimeUnavailable("list", err)
	}

	inspects, err := parseInspect(out)
	if err != nil {
		return nil, errors.RuntimeUnavailable("list", err)
	}

	result := make([]Container, 0, len(inspects))
	for _, in := range inspects {
		result = append(result, in.details().Container)
	}
	return result, nil
}

// Inspect returns details about a single container.
func (r *CLIRuntime) Inspect(ctx context.Context, name string) (*ContainerDetails, error) {
	out, err := r.runCmd(ctx, "inspect", "--type", "container", name)
	if err != nil {
		return nil, r.wrap("inspect", name, err)
	}

	inspects, err := parseInspect(out)
	if err != nil {
		return nil, errors.RuntimeUnavailable("inspect", err)
	}
	if len(inspects) == 0 {
		return nil, errors.InstanceNotFound(name)
	}

	return inspects[0].details(), nil
}

// Images returns the ids of images matching a reference.
func (r *CLIRuntime) Images(ctx context.Context, reference string) ([]string, error) {
	out, err := r.runCmd(ctx, "images", "-q", "--no-trunc", "--filter", "reference="+reference)
	if err != nil {
		return nil, errors.RuntimeUnavailable("image list", err)
	}

	// The same image can be listed once per tag.
	seen := make(map[string]bool)
	var ids []string
	for _, id := range strings.Fields(out) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// createArgs builds the create command line for opts.
func (r *CLIRuntime) createArgs(opts CreateOptions) []string {
	port := fmt.Sprintf("%d/tcp", opts.ContainerPort)
	args := []string{"create", "--name", opts.Name, "--expose", port}

	// ip::port publishes on a host port chosen by the daemon
	args = append(args, "-p", fmt.Sprintf("%s::%s", opts.BindIP, port))

	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
	}

	args = append(args, r.ExtraArgs...)
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Image)
	return args
}

// Create creates a new container but does not start it
func (r *CLIRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	out, err := r.runCmd(ctx, r.createArgs(opts)...)
	if err != nil {
		return "", errors.RuntimeUnavailable("create", err)
	}
	return strings.TrimSpace(out), nil
}

// Start starts an existing container
func (r *CLIRuntime) Start(ctx context.Context, name string) error {
	if _, err := r.runCmd(ctx, "start", name); err != nil {
		return r.wrap("start", name, err)
	}
	return nil
}

// Stop stops a running container
func (r *CLIRuntime) Stop(ctx context.Context, name string) error {
	if _, err := r.runCmd(ctx, "stop", name); err != nil {
		return r.wrap("stop", name, err)
	}
	return nil
}

// Remove deletes a stopped container
func (r *CLIRuntime) Remove(ctx context.Context, name string) error {
	if _, err := r.runCmd(ctx, "rm", name); err != nil {
		return r.wrap("remove", name, err)
	}
	return nil
}

// cliInspect holds the relevant fields from docker/podman inspect
type cliInspect struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	NetworkSettings struct {
		Ports map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

func parseInspect(out string) ([]cliInspect, error) {
	var inspects []cliInspect
	if err := json.NewDecoder(bytes.NewBufferString(out)).Decode(&inspects); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}
	return inspects, nil
}

func (in *cliInspect) details() *ContainerDetails {
	d := &ContainerDetails{
		Container: Container{
			ID:     in.ID,
			Name:   strings.TrimPrefix(in.Name, "/"),
			Image:  in.Config.Image,
			State:  in.State.Status,
			Labels: in.Config.Labels,
		},
		Running: in.State.Running,
	}
	if created, err := time.Parse(time.RFC3339Nano, in.Created); err == nil {
		d.Created = created
	}

	for key, bindings := range in.NetworkSettings.Ports {
		portStr, proto, _ := strings.Cut(key, "/")
		containerPort, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		for _, b := range bindings {
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			d.Ports = append(d.Ports, PortBinding{
				ContainerPort: containerPort,
				Protocol:      protocolOrTCP(proto),
				HostIP:        b.HostIP,
				HostPort:      hostPort,
			})
		}
	}

	return d
}
