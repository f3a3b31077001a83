// Package proxy routes instance subdomains to their containers.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/metrics"
	"github.com/firefly-engineering/ink/internal/tunnel"
)

// DeniedMessage is the body returned for paths on the denylist.
const DeniedMessage = "no permission to view this page"

// NotReadyMessage is the body returned while an instance has no published port.
const NotReadyMessage = "instance is not ready yet"

// DefaultDeniedPrefixes are the instance admin surfaces never exposed.
var DefaultDeniedPrefixes = []string{"/DbAdmin", "/rulesets", "/TeamBuilder"}

// Lookup resolves an instance by its short name.
type Lookup interface {
	ListByName(ctx context.Context, name string) ([]instance.Instance, error)
}

// Config holds proxy configuration
type Config struct {
	// Lookup resolves the instance named by the host's first label.
	Lookup Lookup

	// UpstreamHost is the address instance ports are published on.
	// Defaults to 127.0.0.1.
	UpstreamHost string

	// DeniedPrefixes are path prefixes answered with 403 for every
	// instance. Nil means DefaultDeniedPrefixes.
	DeniedPrefixes []string

	// Tunnel handles WebSocket handshakes. Defaults to tunnel.New().
	Tunnel *tunnel.Tunnel

	Metrics *metrics.Metrics

	// Logger for proxy operations
	Logger *slog.Logger

	// Transport is an optional HTTP transport for the reverse proxy.
	Transport http.RoundTripper
}

// Proxy is a host-routed reverse proxy in front of the local handler.
type Proxy struct {
	config       *Config
	reverseProxy *httputil.ReverseProxy
}

type targetKey struct{}

// New creates a new proxy instance
func New(cfg *Config) (*Proxy, error) {
	if cfg.Lookup == nil {
		return nil, fmt.Errorf("proxy requires an instance lookup")
	}
	if cfg.UpstreamHost == "" {
		cfg.UpstreamHost = "127.0.0.1"
	}
	if cfg.DeniedPrefixes == nil {
		cfg.DeniedPrefixes = DefaultDeniedPrefixes
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("proxy")
	}
	if cfg.Tunnel == nil {
		cfg.Tunnel = tunnel.New(tunnel.WithMetrics(cfg.Metrics), tunnel.WithLogger(cfg.Logger))
	}

	p := &Proxy{config: cfg}

	p.reverseProxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := pr.In.Context().Value(targetKey{}).(*url.URL)
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
	}

	if cfg.Transport != nil {
		p.reverseProxy.Transport = cfg.Transport
	}

	return p, nil
}

// InstanceName returns the host's first label, the candidate instance name.
func InstanceName(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	name, _, _ := strings.Cut(host, ".")
	return strings.ToLower(name)
}

// Denied reports whether path falls under a denied prefix.
func (p *Proxy) Denied(path string) bool {
	for _, prefix := range p.config.DeniedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Target returns the upstream URL for r on inst, keeping path and query.
func (p *Proxy) Target(inst instance.Instance, r *http.Request) *url.URL {
	return &url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(p.config.UpstreamHost, strconv.Itoa(inst.Port)),
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
}

// Middleware serves instance hosts itself and passes everything else to next.
func (p *Proxy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := InstanceName(r.Host)
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}

		instances, err := p.config.Lookup.ListByName(r.Context(), name)
		if err != nil {
			p.config.Logger.Error("instance lookup failed", "host", r.Host, "error", err)
			p.config.Metrics.ProxyRequest(metrics.KindHTTP, metrics.OutcomeError)
			http.Error(w, "error looking up instance", http.StatusInternalServerError)
			return
		}
		if len(instances) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		p.serveInstance(w, r, instances[0])
	})
}

func (p *Proxy) serveInstance(w http.ResponseWriter, r *http.Request, inst instance.Instance) {
	kind := metrics.KindHTTP
	handshake := tunnel.IsHandshake(r)
	if handshake {
		kind = metrics.KindWebSocket
	}

	if p.Denied(r.URL.Path) {
		p.config.Logger.Debug("denied path", "instance", inst.Name, "path", r.URL.Path)
		p.config.Metrics.ProxyRequest(kind, metrics.OutcomeDenied)
		http.Error(w, DeniedMessage, http.StatusForbidden)
		return
	}

	if !inst.Reachable() {
		p.config.Logger.Debug("instance has no port", "instance", inst.Name)
		p.config.Metrics.ProxyRequest(kind, metrics.OutcomeError)
		http.Error(w, NotReadyMessage, http.StatusServiceUnavailable)
		return
	}

	target := p.Target(inst, r)

	if handshake {
		wsTarget := *target
		wsTarget.Scheme = "ws"
		if err := p.config.Tunnel.Serve(w, r, &wsTarget); err != nil {
			p.config.Metrics.ProxyRequest(kind, metrics.OutcomeError)
			return
		}
		p.config.Metrics.ProxyRequest(kind, metrics.OutcomeForwarded)
		return
	}

	startTime := time.Now()
	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	ctx := context.WithValue(r.Context(), targetKey{}, target)
	p.reverseProxy.ServeHTTP(lw, r.WithContext(ctx))

	p.config.Logger.Debug("proxied request",
		"instance", inst.Name,
		"method", r.Method,
		"path", r.URL.Path,
		"status", lw.statusCode,
		"duration", time.Since(startTime))
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	p.config.Metrics.ProxyRequest(metrics.KindHTTP, metrics.OutcomeForwarded)
	return nil
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	perr := errors.ProxyUpstreamError(err)
	p.config.Logger.Error("proxy error", "error", err, "host", r.Host, "path", r.URL.Path)
	p.config.Metrics.ProxyRequest(metrics.KindHTTP, metrics.OutcomeError)
	http.Error(w, perr.Error(), perr.HTTPStatus())
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
