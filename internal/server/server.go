// Package server assembles the ink HTTP server: host-routed proxy in
// front, local API, metrics and static files behind it, and the cleanup
// scheduler alongside.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/firefly-engineering/ink/internal/api"
	"github.com/firefly-engineering/ink/internal/cleanup"
	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/identity"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/metrics"
	"github.com/firefly-engineering/ink/internal/proxy"
	"github.com/firefly-engineering/ink/internal/tunnel"
)

// Server wraps the handler tree with lifecycle management
type Server struct {
	config     *config.Config
	scheduler  *cleanup.Scheduler
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	cleanupOpts []cleanup.Option
	logger      *slog.Logger
}

// WithCleanupOptions passes options through to the cleanup scheduler.
func WithCleanupOptions(opts ...cleanup.Option) Option {
	return func(o *serverOptions) { o.cleanupOpts = append(o.cleanupOpts, opts...) }
}

// WithLogger sets the logger for the server and its components.
func WithLogger(l *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// New builds the handler tree. m may be nil when metrics are disabled.
func New(cfg *config.Config, registry *instance.Registry, provider identity.Provider, m *metrics.Metrics, opts ...Option) (*Server, error) {
	o := &serverOptions{logger: logging.Component("server")}
	for _, opt := range opts {
		opt(o)
	}

	tn := tunnel.New(
		tunnel.WithHandshakeTimeout(cfg.Proxy.HandshakeTimeout),
		tunnel.WithDialTimeout(cfg.Proxy.DialTimeout),
		tunnel.WithMetrics(m),
		tunnel.WithLogger(o.logger.With("component", "tunnel")),
	)
	p, err := proxy.New(&proxy.Config{
		Lookup:         registry,
		UpstreamHost:   cfg.Proxy.UpstreamHost,
		DeniedPrefixes: cfg.Proxy.DeniedPrefixes,
		Tunnel:         tn,
		Metrics:        m,
		Logger:         o.logger.With("component", "proxy"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: o.logger,
	}

	schedOpts := append([]cleanup.Option{
		cleanup.WithMetrics(m),
		cleanup.WithLogger(o.logger.With("component", "cleanup")),
	}, o.cleanupOpts...)
	s.scheduler = cleanup.New(cfg.Cleanup.Interval, cfg.Instances.Retention, registry, schedOpts...)

	r := chi.NewRouter()
	r.Use(p.Middleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Mount("/api", api.New(registry, provider, o.logger.With("component", "api")).Routes())
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	r.Get("/*", s.serveStatic)

	s.handler = r
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the full handler tree.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and runs the cleanup scheduler until ctx is cancelled.
// Shutdown stops the scheduler and closes the listener; open tunnels are
// not drained.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	schedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.scheduler.Run(schedCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	s.logger.Info("serving", "addr", ln.Addr().String())

	var err error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err = <-errCh:
	}

	cancel()
	if cerr := s.httpServer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	wg.Wait()

	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serveStatic serves files from the static directory, with index.html for
// directories.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	path, err := s.config.StaticPath(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		path = filepath.Join(path, "index.html")
		info, err = os.Stat(path)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
