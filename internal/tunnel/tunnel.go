package tunnel

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/metrics"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultGracePeriod      = 5 * time.Second

	controlWriteTimeout = time.Second
)

// Handshake fields owned by the dialer, plus hop-by-hop headers.
var droppedHeaders = map[string]bool{
	"Host":                     true,
	"Upgrade":                  true,
	"Connection":               true,
	"Sec-Websocket-Key":        true,
	"Sec-Websocket-Version":    true,
	"Sec-Websocket-Extensions": true,
	"Sec-Websocket-Accept":     true,
	"Keep-Alive":               true,
	"Proxy-Connection":         true,
	"Te":                       true,
	"Trailer":                  true,
	"Transfer-Encoding":        true,
}

// AcceptKey computes Sec-WebSocket-Accept for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsHandshake reports whether r is a complete WebSocket opening handshake.
func IsHandshake(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r) &&
		r.Header.Get("Sec-Websocket-Key") != "" &&
		r.Header.Get("Sec-Websocket-Version") != ""
}

// HostHeader returns the Host value for target, omitting the port when it
// is the default for the scheme.
func HostHeader(target *url.URL) string {
	port := target.Port()
	if port == "" {
		return target.Hostname()
	}
	switch {
	case port == "80" && (target.Scheme == "ws" || target.Scheme == "http"),
		port == "443" && (target.Scheme == "wss" || target.Scheme == "https"):
		return target.Hostname()
	}
	return target.Host
}

// BackendHeader builds the headers for the backend handshake from the
// inbound request.
func BackendHeader(r *http.Request, target *url.URL) http.Header {
	h := make(http.Header, len(r.Header)+1)
	for k, vs := range r.Header {
		if droppedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Host", HostHeader(target))
	return h
}

// Tunnel relays WebSocket sessions between clients and instance backends.
type Tunnel struct {
	handshakeTimeout time.Duration
	dialTimeout      time.Duration
	grace            time.Duration
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// Option configures a Tunnel.
type Option func(*Tunnel)

// WithHandshakeTimeout bounds the client upgrade.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *Tunnel) { t.handshakeTimeout = d }
}

// WithDialTimeout bounds the backend dial and handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Tunnel) { t.dialTimeout = d }
}

// WithGracePeriod sets how long the surviving forwarder may run after the
// first one ends.
func WithGracePeriod(d time.Duration) Option {
	return func(t *Tunnel) { t.grace = d }
}

// WithMetrics tracks active tunnels.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tunnel) { t.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tunnel) { t.logger = l }
}

// New creates a Tunnel.
func New(opts ...Option) *Tunnel {
	t := &Tunnel{
		handshakeTimeout: DefaultHandshakeTimeout,
		dialTimeout:      DefaultDialTimeout,
		grace:            DefaultGracePeriod,
		logger:           logging.Component("tunnel"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// session is one client/backend pair.
type session struct {
	id       string
	client   *websocket.Conn
	backend  *websocket.Conn
	upFrames atomic.Int64
	dnFrames atomic.Int64
	logger   *slog.Logger
}

// Serve dials target, upgrades the client and relays frames until either
// side closes. It returns after both connections are closed. A dial or
// handshake failure is answered with 500 and returned.
func (t *Tunnel) Serve(w http.ResponseWriter, r *http.Request, target *url.URL) error {
	id := uuid.NewString()
	logger := t.logger.With("tunnel", id, "target", target.String())

	backend, err := t.dial(r, target)
	if err != nil {
		logger.Error("backend dial failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}

	respHeader := http.Header{}
	if sp := backend.Subprotocol(); sp != "" {
		respHeader.Set("Sec-Websocket-Protocol", sp)
	}
	upgrader := websocket.Upgrader{
		HandshakeTimeout: t.handshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	client, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already written the error response.
		backend.Close()
		logger.Error("client upgrade failed", "error", err)
		return errors.HandshakeError("client upgrade failed", err)
	}

	done := t.metrics.TunnelOpened()
	defer done()

	s := &session{id: id, client: client, backend: backend, logger: logger}
	logger.Debug("tunnel established", "remote", r.RemoteAddr)
	t.relay(s)
	logger.Debug("tunnel closed",
		"client_to_backend", s.upFrames.Load(),
		"backend_to_client", s.dnFrames.Load())
	return nil
}

func (t *Tunnel) dial(r *http.Request, target *url.URL) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: t.dialTimeout,
		Subprotocols:     websocket.Subprotocols(r),
	}
	header := BackendHeader(r, target)
	header.Del("Sec-Websocket-Protocol")

	ctx, cancel := context.WithTimeout(r.Context(), t.dialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		var netErr net.Error
		if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errors.DialTimeout(target.Host, err)
		}
		return nil, errors.HandshakeError("backend handshake failed", err)
	}
	return conn, nil
}

// relay runs both forwarders. The first to finish fires the one-shot
// completion signal; the sibling then gets the grace period before both
// connections are closed.
func (t *Tunnel) relay(s *session) {
	var once sync.Once
	finished := make(chan struct{})
	signal := func() { once.Do(func() { close(finished) }) }

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer signal()
		s.forward(s.backend, s.client, "client_to_backend", &s.upFrames)
	}()
	go func() {
		defer wg.Done()
		defer signal()
		s.forward(s.client, s.backend, "backend_to_client", &s.dnFrames)
	}()

	<-finished

	both := make(chan struct{})
	go func() {
		wg.Wait()
		close(both)
	}()

	select {
	case <-both:
	case <-time.After(t.grace):
		s.logger.Debug("grace period elapsed, closing tunnel")
	}

	s.client.Close()
	s.backend.Close()
	<-both
}

// forward copies messages from src to dst until src closes or fails.
func (s *session) forward(dst, src *websocket.Conn, direction string, frames *atomic.Int64) {
	logger := s.logger.With("direction", direction)

	src.SetPingHandler(func(data string) error {
		frames.Add(1)
		return writeControl(dst, websocket.PingMessage, []byte(data))
	})
	src.SetPongHandler(func(data string) error {
		frames.Add(1)
		return writeControl(dst, websocket.PongMessage, []byte(data))
	})

	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			if stderrors.Is(err, net.ErrClosed) {
				logger.Debug("connection closed")
				return
			}

			var closeErr *websocket.CloseError
			if stderrors.As(err, &closeErr) && !abnormalClose(closeErr.Code) {
				frames.Add(1)
				logger.Debug("close received", "code", closeErr.Code, "reason", closeErr.Text)
				forwardClose(dst, logger, websocket.FormatCloseMessage(closeErr.Code, closeErr.Text))
				return
			}

			// The peer vanished without a close frame. 1006 and 1015 must not
			// go on the wire, so the other side is told the peer went away.
			logger.Error("transport error", "error", err)
			forwardClose(dst, logger, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}

		if err := dst.WriteMessage(msgType, data); err != nil {
			logger.Error("write failed", "error", err)
			return
		}
		frames.Add(1)
	}
}

// abnormalClose reports codes that describe a local transport failure and
// are never sent in a close frame.
func abnormalClose(code int) bool {
	return code == websocket.CloseAbnormalClosure || code == websocket.CloseTLSHandshake
}

func forwardClose(dst *websocket.Conn, logger *slog.Logger, msg []byte) {
	if err := writeControl(dst, websocket.CloseMessage, msg); err != nil && !stderrors.Is(err, websocket.ErrCloseSent) {
		logger.Debug("forwarding close failed", "error", err)
	}
}

func writeControl(conn *websocket.Conn, msgType int, data []byte) error {
	return conn.WriteControl(msgType, data, time.Now().Add(controlWriteTimeout))
}
