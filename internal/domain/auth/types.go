package auth

// Package auth contains domain-level types for authentication, session state,
// and role resolution. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization tier.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"

	// RoleNone marks the absence of a role (unauthenticated or unresolved).
	RoleNone Role = ""
)

// ParseRole validates a loosely-typed role value (e.g. from signup metadata).
// It returns RoleNone and false for anything outside the enum.
func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleStudent, RoleAdmin:
		return Role(v), true
	default:
		return RoleNone, false
	}
}

// Identity represents the authenticated principal returned by the auth backend.
// Adapters map backend-specific claims into this shape.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`

	// RoleHint is the role embedded in signup metadata, already validated
	// against the Role enum by the adapter. RoleNone when absent or invalid.
	RoleHint Role `json:"role_hint,omitempty"`
}

// Session is a live, token-backed authentication context for one browser client.
// Token is opaque and issued by the auth backend; it is never parsed here.
type Session struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's backend-managed expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionEventKind classifies session-change notifications from the auth backend.
type SessionEventKind string

const (
	SessionEventSignedIn     SessionEventKind = "signed_in"
	SessionEventSignedUp     SessionEventKind = "signed_up"
	SessionEventTokenRefresh SessionEventKind = "token_refreshed"
	SessionEventSignedOut    SessionEventKind = "signed_out"
	SessionEventRevoked      SessionEventKind = "revoked"
	SessionEventInitial      SessionEventKind = "initial"
)

// ResolverState is the externally observable state of a session/role resolver.
// Invariants:
//   - Identity == nil implies Role == RoleNone and Resolving == false.
//   - While Resolving is true, Role is provisional and must not be trusted.
type ResolverState struct {
	Identity  *Identity
	Session   *Session
	Role      Role
	Resolving bool
}

// Authenticated reports whether the state carries an identity.
func (s ResolverState) Authenticated() bool { return s.Identity != nil }

// Unauthenticated returns the terminal state for "no session".
func Unauthenticated() ResolverState {
	return ResolverState{Role: RoleNone, Resolving: false}
}
