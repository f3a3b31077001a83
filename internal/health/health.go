package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/firefly-engineering/ink/internal/instance"
)

// Status represents the health status of an instance
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusUnreachable Status = "unreachable"
	StatusStarting    Status = "starting"
	StatusStopped     Status = "stopped"

	// DefaultDialTimeout bounds the backend reachability probe.
	DefaultDialTimeout = 2 * time.Second
)

// CheckResult contains the results of health checks
type CheckResult struct {
	Running          bool
	PortPublished    bool
	BackendReachable bool
	Uptime           string
	Status           Status
}

// CheckBackend reports whether something accepts TCP connections at
// host:port within timeout.
func CheckBackend(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if port <= 0 {
		return false
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// Check performs all health checks for an instance. A nil inst means the
// instance is not among the running containers.
func Check(ctx context.Context, inst *instance.Instance, upstreamHost string, now time.Time) *CheckResult {
	result := &CheckResult{Status: StatusStopped}
	if inst == nil {
		return result
	}

	result.Running = true
	result.Uptime = formatDuration(inst.Age(now))

	result.PortPublished = inst.Reachable()
	if !result.PortPublished {
		result.Status = StatusStarting
		return result
	}

	result.BackendReachable = CheckBackend(ctx, upstreamHost, inst.Port, DefaultDialTimeout)
	if !result.BackendReachable {
		result.Status = StatusUnreachable
		return result
	}

	result.Status = StatusHealthy
	return result
}
