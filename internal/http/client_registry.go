package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/ports"
	"github.com/courselens/courselens-api/internal/service"
)

const (
	// clientCookieName identifies one browser across requests so it keeps
	// talking to the same resolver.
	clientCookieName = "courselens_client"
	// sessionCookieName carries the opaque session token so a signed-in
	// session survives a server restart (the registry recovers it from the
	// session store when rebuilding the client).
	sessionCookieName = "courselens_session"

	clientCookieMaxAge = 30 * 24 * 60 * 60 // 30 days
)

// FlashQueue buffers user-visible notices for one browser client until the
// next status poll drains them. It implements ports.Notifier.
type FlashQueue struct {
	mu      sync.Mutex
	notices []ports.Notice
}

// Notify enqueues a notice.
func (q *FlashQueue) Notify(n ports.Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, n)
}

// Drain returns all pending notices and clears the queue.
func (q *FlashQueue) Drain() []ports.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	return out
}

// Client is one browser's server-side counterpart: the resolver holding its
// authentication state plus the flash queue for its notices.
type Client struct {
	ID       string
	Resolver *service.SessionResolver
	Notices  *FlashQueue

	lastSeen time.Time // guarded by the registry mutex
}

// NewAuthClientFunc builds a fresh auth client for one browser. When existing
// is non-nil the client starts from that recovered session.
type NewAuthClientFunc func(existing *domainauth.Session) ports.AuthClient

// ClientRegistryOptions groups dependencies for ClientRegistry.
type ClientRegistryOptions struct {
	NewAuthClient NewAuthClientFunc
	Roles         ports.RoleDirectory
	Profiles      ports.ProfileDirectory
	// Sessions is optional; when set, session cookies are recovered from the
	// store and live sessions are mirrored into it.
	Sessions ports.SessionStore
	Logger   *slog.Logger
	// RoleLookupTimeout is passed through to each resolver.
	RoleLookupTimeout time.Duration
	CookieDomain      string
}

// ClientRegistry owns the per-browser clients, keyed by a client cookie. Each
// browser gets exactly one SessionResolver, created on first contact and
// reused until it idles out.
type ClientRegistry struct {
	opts ClientRegistryOptions

	mu      sync.Mutex
	clients map[string]*Client
}

// NewClientRegistry constructs an empty registry.
func NewClientRegistry(opts ClientRegistryOptions) *ClientRegistry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ClientRegistry{
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// GetOrCreate returns the browser's client, creating and initializing it on
// first contact. A fresh client recovers any stored session named by the
// session cookie before its resolver initializes, so a restart does not sign
// the user out.
func (g *ClientRegistry) GetOrCreate(w http.ResponseWriter, r *http.Request) *Client {
	if cookie, err := r.Cookie(clientCookieName); err == nil {
		g.mu.Lock()
		if c, ok := g.clients[cookie.Value]; ok {
			c.lastSeen = time.Now()
			g.mu.Unlock()
			return c
		}
		g.mu.Unlock()
	}

	existing := g.recoverSession(r)

	flash := &FlashQueue{}
	resolver := service.NewSessionResolver(service.SessionResolverOptions{
		Client:            g.opts.NewAuthClient(existing),
		Roles:             g.opts.Roles,
		Profiles:          g.opts.Profiles,
		Sessions:          g.opts.Sessions,
		Notifier:          flash,
		Logger:            g.opts.Logger,
		RoleLookupTimeout: g.opts.RoleLookupTimeout,
	})
	resolver.Initialize(r.Context())

	c := &Client{
		ID:       uuid.NewString(),
		Resolver: resolver,
		Notices:  flash,
		lastSeen: time.Now(),
	}

	g.mu.Lock()
	g.clients[c.ID] = c
	g.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    c.ID,
		Path:     "/",
		Domain:   g.opts.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   clientCookieMaxAge,
	})

	return c
}

// recoverSession looks up the session named by the browser's session cookie.
// Any failure (no cookie, no store, expired, gone) recovers as signed out.
func (g *ClientRegistry) recoverSession(r *http.Request) *domainauth.Session {
	if g.opts.Sessions == nil {
		return nil
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := g.opts.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return &sess
}

// PurgeIdle closes and removes clients idle for longer than maxIdle,
// returning how many were evicted. Intended to run on a timer.
func (g *ClientRegistry) PurgeIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	g.mu.Lock()
	var stale []*Client
	for id, c := range g.clients {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, c)
			delete(g.clients, id)
		}
	}
	g.mu.Unlock()

	// Close outside the lock: Close waits on in-flight resolver work.
	for _, c := range stale {
		c.Resolver.Close()
	}
	return len(stale)
}

// Len returns the number of live clients.
func (g *ClientRegistry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Close shuts down every client. Used on server shutdown.
func (g *ClientRegistry) Close() {
	g.mu.Lock()
	clients := make([]*Client, 0, len(g.clients))
	for id, c := range g.clients {
		clients = append(clients, c)
		delete(g.clients, id)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.Resolver.Close()
	}
}

// isSecureRequest reports whether the request arrived over TLS, directly or
// via a terminating proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
