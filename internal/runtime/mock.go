package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/ink/internal/errors"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Containers tracks the state of mock containers by name
	Containers map[string]*ContainerDetails

	// ImageIDs maps an image reference to the ids Images returns
	ImageIDs map[string][]string

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	// PortLag is how many Inspect calls after Start see no published port.
	// A negative value means the port is never published.
	PortLag int

	// Now stamps created containers; defaults to time.Now
	Now func() time.Time

	nextPort     int
	pendingPorts map[string]int
	nextID       int
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime with a single "squittal" image.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Containers:   make(map[string]*ContainerDetails),
		ImageIDs:     map[string][]string{"squittal": {"sha256:mock"}},
		Errors:       make(map[string]error),
		CallLog:      make([]MockCall, 0),
		Now:          time.Now,
		nextPort:     40000,
		pendingPorts: make(map[string]int),
	}
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Errors, operation)
		return
	}
	m.Errors[operation] = err
}

// AddContainer adds a running container with a published port to the mock.
func (m *MockRuntime) AddContainer(name, image string, labels map[string]string, created time.Time, containerPort, hostPort int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Containers[name] = &ContainerDetails{
		Container: Container{
			ID:      fmt.Sprintf("mock%04d", m.nextID),
			Name:    name,
			Image:   image,
			State:   "running",
			Created: created,
			Labels:  labels,
			Ports: []PortBinding{{
				ContainerPort: containerPort,
				Protocol:      "tcp",
				HostIP:        "0.0.0.0",
				HostPort:      hostPort,
			}},
		},
		Running: true,
	}
}

// HasContainer reports whether a container with the given name exists.
func (m *MockRuntime) HasContainer(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Containers[name]
	return ok
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers = make(map[string]*ContainerDetails)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
	m.pendingPorts = make(map[string]int)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

func (m *MockRuntime) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping")
	return m.Errors["Ping"]
}

func matches(c *ContainerDetails, f Filter) bool {
	if f.Ancestor != "" && c.Image != f.Ancestor {
		return false
	}
	for k, v := range f.Labels {
		if c.Labels[k] != v {
			return false
		}
	}
	if f.Name != "" && !strings.Contains(c.Name, f.Name) {
		return false
	}
	return true
}

// List returns running containers matching the filter, ordered by name.
func (m *MockRuntime) List(ctx context.Context, f Filter) ([]Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List", f)

	if err, ok := m.Errors["List"]; ok {
		return nil, err
	}

	result := make([]Container, 0, len(m.Containers))
	for _, c := range m.Containers {
		if c.Running && matches(c, f) {
			result = append(result, c.Container)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Inspect returns details about a container. Each call counts down the
// port lag of a freshly started container.
func (m *MockRuntime) Inspect(ctx context.Context, name string) (*ContainerDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Inspect", name)

	if err, ok := m.Errors["Inspect"]; ok {
		return nil, err
	}

	c, ok := m.Containers[name]
	if !ok {
		return nil, errors.InstanceNotFound(name)
	}

	if remaining, pending := m.pendingPorts[name]; pending {
		if remaining == 0 {
			delete(m.pendingPorts, name)
			m.publish(c)
		} else if remaining > 0 {
			m.pendingPorts[name] = remaining - 1
		}
	}

	details := *c
	return &details, nil
}

func (m *MockRuntime) publish(c *ContainerDetails) {
	for i := range c.Ports {
		if c.Ports[i].HostPort == 0 {
			c.Ports[i].HostPort = m.nextPort
			m.nextPort++
		}
	}
}

func (m *MockRuntime) Images(ctx context.Context, reference string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Images", reference)

	if err, ok := m.Errors["Images"]; ok {
		return nil, err
	}
	return append([]string(nil), m.ImageIDs[reference]...), nil
}

// Create creates a new container
func (m *MockRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", opts)

	if err, ok := m.Errors["Create"]; ok {
		return "", err
	}
	if _, exists := m.Containers[opts.Name]; exists {
		return "", errors.RuntimeUnavailable("create", fmt.Errorf("conflict: container name %s already in use", opts.Name))
	}

	labels := make(map[string]string, len(opts.Labels))
	for k, v := range opts.Labels {
		labels[k] = v
	}

	m.nextID++
	id := fmt.Sprintf("mock%04d", m.nextID)
	m.Containers[opts.Name] = &ContainerDetails{
		Container: Container{
			ID:      id,
			Name:    opts.Name,
			Image:   opts.Image,
			State:   "created",
			Created: m.Now(),
			Labels:  labels,
			Ports: []PortBinding{{
				ContainerPort: opts.ContainerPort,
				Protocol:      "tcp",
				HostIP:        opts.BindIP,
			}},
		},
	}

	return id, nil
}

// Start starts an existing container
func (m *MockRuntime) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Start", name)

	if err, ok := m.Errors["Start"]; ok {
		return err
	}

	c, ok := m.Containers[name]
	if !ok {
		return errors.InstanceNotFound(name)
	}
	c.Running = true
	c.State = "running"

	if m.PortLag == 0 {
		m.publish(c)
	} else {
		m.pendingPorts[name] = m.PortLag
	}

	return nil
}

// Stop stops a running container
func (m *MockRuntime) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop", name)

	if err, ok := m.Errors["Stop"]; ok {
		return err
	}

	c, ok := m.Containers[name]
	if !ok {
		return errors.InstanceNotFound(name)
	}
	c.Running = false
	c.State = "exited"

	return nil
}

// Remove deletes a container
func (m *MockRuntime) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Remove", name)

	if err, ok := m.Errors["Remove"]; ok {
		return err
	}

	if _, ok := m.Containers[name]; !ok {
		return errors.InstanceNotFound(name)
	}
	delete(m.Containers, name)
	delete(m.pendingPorts, name)

	return nil
}
