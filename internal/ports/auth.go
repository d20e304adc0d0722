package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
)

// SignUpInput carries inputs for account registration. DisplayName and Role
// travel as loosely-typed signup metadata on the auth backend; adapters are
// responsible for round-tripping them into Identity.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domainauth.Role
}

// SessionCallback receives session-change notifications from an AuthClient.
// A nil session means the client is now signed out.
type SessionCallback func(kind domainauth.SessionEventKind, sess *domainauth.Session)

// AuthClient is one browser client's handle on the auth backend. It owns that
// client's credential exchanges and emits session events to subscribers.
// Implementations must deliver events for a given client in order.
type AuthClient interface {
	// CurrentSession returns the client's existing session, or nil when
	// there is none. An expired session is reported as nil.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	// Subscribe registers a callback for session events and returns an
	// unsubscribe function. Events triggered by SignIn/SignUp/SignOut on
	// this client are delivered to the callback.
	Subscribe(cb SessionCallback) (unsubscribe func())

	// SignIn exchanges credentials for a session.
	SignIn(ctx context.Context, email, password string) (domainauth.Session, error)

	// SignUp registers a new identity and signs it in.
	SignUp(ctx context.Context, in SignUpInput) (domainauth.Session, error)

	// SignOut invalidates the client's session.
	SignOut(ctx context.Context) error
}

// IdentityAdmin performs privileged operations against the auth backend.
type IdentityAdmin interface {
	// DeleteIdentity permanently removes an identity from the auth backend.
	DeleteIdentity(ctx context.Context, userID string) error
}

// SessionStore persists and retrieves sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, token string) (domainauth.Session, error)
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes every stored session for the given identity and
	// returns how many were removed. Used when blocking or deleting accounts.
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
