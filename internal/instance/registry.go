// Package instance implements the instance registry: a stateless facade over
// the container runtime that enforces the one-instance-per-owner and
// platform capacity policies.
package instance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firefly-engineering/ink/internal/audit"
	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/metrics"
	"github.com/firefly-engineering/ink/internal/runtime"
)

// Removal triggers, used as the metrics label and audit detail.
const (
	TriggerRequest = "request"
	TriggerCleanup = "cleanup"
)

// rollbackTimeout bounds the best-effort removal of a half-created container.
const rollbackTimeout = 30 * time.Second

// NameGenerator produces candidate instance names.
type NameGenerator interface {
	Generate() (string, error)
}

// Registry creates, enumerates and removes instances. Every query goes to
// the runtime; nothing is cached.
type Registry struct {
	rt       runtime.Runtime
	names    NameGenerator
	settings Settings

	audit   audit.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	// createMu serializes Create so the ownership and capacity checks and
	// the container commit are atomic with respect to each other.
	createMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithAudit records lifecycle events.
func WithAudit(r audit.Recorder) Option {
	return func(reg *Registry) { reg.audit = r }
}

// WithMetrics counts lifecycle events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(reg *Registry) { reg.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// WithSleep replaces the wait between port discovery attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(reg *Registry) { reg.sleep = sleep }
}

// SettingsFromConfig extracts registry settings from the configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Image:                 cfg.Runtime.Image,
		ContainerPrefix:       cfg.Runtime.ContainerPrefix,
		MarkerLabel:           cfg.Runtime.MarkerLabel,
		OwnerLabel:            cfg.Runtime.OwnerLabel,
		ServicePort:           cfg.Runtime.ServicePort,
		BindIP:                cfg.Runtime.BindIP,
		Network:               cfg.Runtime.Network,
		Capacity:              cfg.Instances.Capacity,
		PortDiscoveryAttempts: cfg.Instances.PortDiscoveryAttempts,
		PortDiscoveryInterval: cfg.Instances.PortDiscoveryInterval,
	}
}

// NewRegistry creates a registry over rt.
func NewRegistry(rt runtime.Runtime, names NameGenerator, settings Settings, opts ...Option) *Registry {
	r := &Registry{
		rt:       rt,
		names:    names,
		settings: settings,
		logger:   logging.Component("registry"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the registry's settings.
func (r *Registry) Settings() Settings {
	return r.settings
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Registry) baseFilter() runtime.Filter {
	return runtime.Filter{
		Ancestor: r.settings.Image,
		Labels:   map[string]string{r.settings.MarkerLabel: "true"},
	}
}

func (r *Registry) list(ctx context.Context, f runtime.Filter) ([]Instance, error) {
	containers, err := r.rt.List(ctx, f)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(containers))
	for _, c := range containers {
		instances = append(instances, r.settings.fromContainer(c))
	}
	return instances, nil
}

// List returns every instance the runtime currently reports.
func (r *Registry) List(ctx context.Context) ([]Instance, error) {
	return r.list(ctx, r.baseFilter())
}

// ListByOwner returns the instances owned by owner.
func (r *Registry) ListByOwner(ctx context.Context, owner string) ([]Instance, error) {
	f := r.baseFilter()
	f.Labels[r.settings.OwnerLabel] = owner
	return r.list(ctx, f)
}

// ListByName returns the instances whose container name is exactly the
// derived name. The runtime's name filter matches substrings, so results
// are narrowed here.
func (r *Registry) ListByName(ctx context.Context, name string) ([]Instance, error) {
	f := r.baseFilter()
	f.Name = r.settings.ContainerName(name)

	all, err := r.list(ctx, f)
	if err != nil {
		return nil, err
	}

	want := r.settings.InstanceName(f.Name)
	result := make([]Instance, 0, len(all))
	for _, inst := range all {
		if inst.Name == want {
			result = append(result, inst)
		}
	}
	return result, nil
}

// Create provisions an instance for owner. It fails with a capacity error
// when owner already has one or the platform is full, and never leaves a
// container behind on failure unless the rollback itself fails.
func (r *Registry) Create(ctx context.Context, owner string) (*Instance, error) {
	if owner == "" {
		return nil, errors.ValidationError("owner is required")
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	inst, err := r.create(ctx, owner)
	if err != nil {
		r.metrics.CreateFailed(string(errors.KindOf(err)))
		return nil, err
	}

	r.metrics.InstanceCreated()
	r.record(audit.EventCreate, inst.Name, owner, fmt.Sprintf("port=%d", inst.Port))
	r.logger.Info("instance created", "name", inst.Name, "owner", owner, "port", inst.Port)
	return inst, nil
}

func (r *Registry) create(ctx context.Context, owner string) (*Instance, error) {
	mine, err := r.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(mine) > 0 {
		return nil, errors.CapacityError(fmt.Sprintf("user already has instance %s", mine[0].Name))
	}

	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) >= r.settings.Capacity {
		return nil, errors.CapacityError("already running max instances")
	}

	images, err := r.rt.Images(ctx, r.settings.Image)
	if err != nil {
		return nil, err
	}
	if len(images) != 1 {
		err := errors.ConfigurationError(
			fmt.Sprintf("expected exactly one %q image, found %d", r.settings.Image, len(images)), nil)
		r.logger.Error("backing image check failed", "image", r.settings.Image, "found", len(images))
		return nil, err
	}

	name, err := r.names.Generate()
	if err != nil {
		return nil, err
	}
	containerName := r.settings.ContainerName(name)

	r.logger.Debug("creating instance", "owner", owner, "name", name)
	_, err = r.rt.Create(ctx, runtime.CreateOptions{
		Name:          containerName,
		Image:         r.settings.Image,
		ContainerPort: r.settings.ServicePort,
		BindIP:        r.settings.BindIP,
		Labels: map[string]string{
			r.settings.MarkerLabel: "true",
			r.settings.OwnerLabel:  owner,
		},
		Network: r.settings.Network,
	})
	if err != nil {
		if r.leftoverFromCreate(ctx, containerName, owner) {
			r.rollback(ctx, containerName, owner, "create failed")
		}
		return nil, err
	}

	if err := r.rt.Start(ctx, containerName); err != nil {
		r.rollback(ctx, containerName, owner, "start failed")
		return nil, err
	}

	details, err := r.discoverPort(ctx, containerName)
	if err != nil {
		r.rollback(ctx, containerName, owner, err.Error())
		return nil, err
	}

	inst := r.settings.fromContainer(details.Container)
	if inst.Owner == "" {
		inst.Owner = owner
	}
	return &inst, nil
}

// discoverPort polls inspect until the service port is published or the
// attempt budget runs out.
func (r *Registry) discoverPort(ctx context.Context, containerName string) (*runtime.ContainerDetails, error) {
	attempts := r.settings.PortDiscoveryAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		details, err := r.rt.Inspect(ctx, containerName)
		if err != nil {
			r.logger.Warn("inspect failed during port discovery", "container", containerName, "attempt", attempt, "error", err)
		} else if details.HostPort(r.settings.ServicePort) > 0 {
			return details, nil
		}

		if attempt == attempts {
			break
		}
		r.logger.Debug("port not yet published", "container", containerName, "attempt", attempt)
		if err := r.sleep(ctx, r.settings.PortDiscoveryInterval); err != nil {
			return nil, err
		}
	}

	return nil, errors.PortDiscoveryTimeout(containerName, attempts)
}

// leftoverFromCreate reports whether a failed Create still left a container
// behind for this owner. A name conflict with someone else's container, or a
// running one, is never treated as ours.
func (r *Registry) leftoverFromCreate(ctx context.Context, containerName, owner string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	details, err := r.rt.Inspect(ctx, containerName)
	if err != nil || details == nil {
		return false
	}
	return !details.Running && details.Labels[r.settings.OwnerLabel] == owner
}

// rollback removes a half-created container. Failures are logged and not
// retried; the container stays visible to List and is reclaimed by cleanup
// once it expires.
func (r *Registry) rollback(ctx context.Context, containerName, owner, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	name := r.settings.InstanceName(containerName)
	if err := r.rt.Stop(ctx, containerName); err != nil {
		r.logger.Debug("stop during rollback", "container", containerName, "error", err)
	}
	if err := r.rt.Remove(ctx, containerName); err != nil {
		r.logger.Error("rollback failed, container left behind", "container", containerName, "error", err)
		r.record(audit.EventError, name, owner, "rollback failed: "+err.Error())
		return
	}

	r.logger.Warn("rolled back instance", "container", containerName, "reason", reason)
	r.record(audit.EventRollback, name, owner, reason)
}

// Remove stops and deletes an instance on explicit request. name may be the
// bare instance name or the full container name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	return r.remove(ctx, name, TriggerRequest)
}

// Expire removes an instance whose retention window has passed. The expire
// event is recorded once, when the removal succeeds.
func (r *Registry) Expire(ctx context.Context, name string) error {
	if err := r.remove(ctx, name, TriggerCleanup); err != nil {
		return err
	}
	r.record(audit.EventExpire, r.settings.InstanceName(name), "", "")
	return nil
}

func (r *Registry) remove(ctx context.Context, name, trigger string) error {
	containerName := r.settings.ContainerName(name)

	if err := r.rt.Stop(ctx, containerName); err != nil {
		return err
	}
	if err := r.rt.Remove(ctx, containerName); err != nil {
		return err
	}

	r.metrics.InstanceRemoved(trigger)
	r.record(audit.EventRemove, r.settings.InstanceName(containerName), "", "trigger="+trigger)
	r.logger.Info("instance removed", "container", containerName, "trigger", trigger)
	return nil
}

func (r *Registry) record(eventType audit.EventType, name, owner, details string) {
	if r.audit == nil {
		return
	}
	err := r.audit.Log(audit.Event{
		Type:     eventType,
		Instance: name,
		Owner:    owner,
		Details:  details,
	})
	if err != nil {
		r.logger.Debug("audit log write failed", "instance", name, "error", err)
	}
}
