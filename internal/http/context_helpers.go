package httpx

import (
	"context"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// clientKey carries the per-browser client entry attached by WithClient.
type clientKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// setClientInContext attaches the resolved browser client entry.
func setClientInContext(ctx context.Context, c *Client) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the browser client attached by WithClient middleware.
func ClientFromContext(ctx context.Context) (*Client, bool) {
	if c, ok := ctx.Value(clientKey{}).(*Client); ok && c != nil {
		return c, true
	}
	return nil, false
}
