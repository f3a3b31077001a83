// Package identity resolves the caller of an HTTP request.
//
// The login flow itself lives outside ink. Providers only read what it
// leaves behind: trusted headers set by an authenticating proxy, or a
// session hash in Redis keyed by the session cookie.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/firefly-engineering/ink/internal/config"
)

const (
	ModeHeader  = "header"
	ModeSession = "session"

	sessionKeyPrefix = "ink:session:"
)

// Identity is an authenticated user.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Provider identifies the caller of r. A nil Identity with a nil error
// means the request is anonymous.
type Provider interface {
	Identify(r *http.Request) (*Identity, error)
}

// HeaderProvider trusts headers set by an upstream auth proxy.
type HeaderProvider struct {
	UserHeader string
	NameHeader string
}

// Identify implements Provider.
func (p *HeaderProvider) Identify(r *http.Request) (*Identity, error) {
	id := strings.TrimSpace(r.Header.Get(p.UserHeader))
	if id == "" {
		return nil, nil
	}
	name := strings.TrimSpace(r.Header.Get(p.NameHeader))
	if name == "" {
		name = id
	}
	return &Identity{ID: id, Username: name}, nil
}

// SessionReader is the Redis command the session provider needs.
// redis.UniversalClient satisfies it.
type SessionReader interface {
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
}

// SessionProvider looks the session cookie up in Redis.
type SessionProvider struct {
	Cookie string
	Store  SessionReader
}

// Identify implements Provider.
func (p *SessionProvider) Identify(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(p.Cookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	fields, err := p.Store.HGetAll(r.Context(), sessionKeyPrefix+cookie.Value).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	// HGETALL on a missing key is an empty hash.
	id := fields["id"]
	if id == "" {
		return nil, nil
	}
	name := fields["username"]
	if name == "" {
		name = id
	}
	return &Identity{ID: id, Username: name}, nil
}

// NewRedisClient creates a client from a redis:// URL or a bare host:port.
func NewRedisClient(addr string) (redis.UniversalClient, error) {
	if !strings.Contains(addr, "://") {
		return redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}}), nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("cant parse redis url: %w", err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opts.Addr},
		DB:       opts.DB,
		Username: opts.Username,
		Password: opts.Password,
	}), nil
}

// FromConfig builds the provider selected by cfg.Identity.Mode. The
// returned close func releases the Redis client, if any.
func FromConfig(cfg *config.Config) (Provider, func() error, error) {
	switch cfg.Identity.Mode {
	case ModeHeader, "":
		return &HeaderProvider{
			UserHeader: cfg.Identity.UserHeader,
			NameHeader: cfg.Identity.NameHeader,
		}, func() error { return nil }, nil
	case ModeSession:
		client, err := NewRedisClient(cfg.Identity.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return &SessionProvider{Cookie: cfg.Identity.SessionCookie, Store: client}, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown identity mode %q", cfg.Identity.Mode)
	}
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
