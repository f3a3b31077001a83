// Package health checks whether an instance is actually serving.
//
// # Health Status
//
//	StatusHealthy     - Container running and its backend accepts connections
//	StatusUnreachable - Port published but nothing answers on it
//	StatusStarting    - Container running, service port not yet published
//	StatusStopped     - No running container for the instance
//
// Usage:
//
//	result := health.Check(ctx, inst, cfg.Proxy.UpstreamHost, time.Now())
//	// result.Running, .PortPublished, .BackendReachable, .Uptime, .Status
package health
