package instance

import (
	"strings"
	"time"

	"github.com/firefly-engineering/ink/internal/runtime"
)

// Instance is one user's running application container. It has no existence
// apart from the runtime container it is derived from.
type Instance struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	Port      int       `json:"port"`
}

// Redacted returns a copy safe to show to other users: name and port are
// cleared so that instances cannot be discovered through listings.
func (i Instance) Redacted() Instance {
	i.Name = ""
	i.Port = 0
	return i
}

// Age returns how long the instance has existed at now.
func (i Instance) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

// Reachable reports whether the runtime has published a host port.
func (i Instance) Reachable() bool {
	return i.Port > 0
}

// Settings is the slice of configuration the registry needs.
type Settings struct {
	Image                 string
	ContainerPrefix       string
	MarkerLabel           string
	OwnerLabel            string
	ServicePort           int
	BindIP                string
	Network               string
	Capacity              int
	PortDiscoveryAttempts int
	PortDiscoveryInterval time.Duration
}

// ContainerName maps a bare instance name or a full container name to the
// container name.
func (s Settings) ContainerName(name string) string {
	name = strings.TrimPrefix(name, "/")
	if strings.HasPrefix(name, s.ContainerPrefix) {
		return name
	}
	return s.ContainerPrefix + name
}

// InstanceName strips the leading "/" and the container prefix.
func (s Settings) InstanceName(containerName string) string {
	return strings.TrimPrefix(strings.TrimPrefix(containerName, "/"), s.ContainerPrefix)
}

func (s Settings) fromContainer(c runtime.Container) Instance {
	return Instance{
		Name:      s.InstanceName(c.Name),
		Owner:     c.Labels[s.OwnerLabel],
		CreatedAt: c.Created,
		Port:      c.HostPort(s.ServicePort),
	}
}
