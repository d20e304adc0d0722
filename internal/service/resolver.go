package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

const defaultRoleLookupTimeout = 3 * time.Second

// SessionResolverOptions groups dependencies for SessionResolver.
type SessionResolverOptions struct {
	Client   ports.AuthClient
	Roles    ports.RoleDirectory
	Profiles ports.ProfileDirectory
	// Sessions is optional; when set, live sessions are mirrored into the
	// store so they survive restarts and can be revoked.
	Sessions ports.SessionStore
	// Notifier is optional; nil drops user-visible notices.
	Notifier ports.Notifier
	Logger   *slog.Logger
	// RoleLookupTimeout bounds the durable role lookup per session event.
	RoleLookupTimeout time.Duration
}

// SessionResolver tracks one browser client's authentication state and keeps
// its resolved role current as session events arrive.
//
// All state transitions happen under a single mutex and carry a generation
// number. Each session event bumps the generation; a role resolution only
// commits if its generation is still current, so a slow lookup can never
// overwrite the outcome of a newer event.
type SessionResolver struct {
	client   ports.AuthClient
	roles    ports.RoleDirectory
	profiles ports.ProfileDirectory
	sessions ports.SessionStore
	notifier ports.Notifier
	logger   *slog.Logger

	lookupTimeout time.Duration

	mu      sync.Mutex
	state   domainauth.ResolverState
	gen     uint64
	subs    map[int]func(domainauth.ResolverState)
	nextSub int
	unsub   func()

	// emitQueue holds pending subscriber deliveries in commit order. A single
	// drainer goroutine works the queue so delivery never blocks a state
	// transition and subscribers may call back into the resolver.
	emitQueue []emission
	draining  bool

	// tasks tracks background work (role lookups, signup provisioning) so
	// callers can observe completion instead of racing fire-and-forget
	// goroutines.
	tasks sync.WaitGroup
}

// NewSessionResolver constructs a resolver in the resolving state. Callers
// must call Initialize to settle it.
func NewSessionResolver(opts SessionResolverOptions) *SessionResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RoleLookupTimeout
	if timeout <= 0 {
		timeout = defaultRoleLookupTimeout
	}
	return &SessionResolver{
		client:        opts.Client,
		roles:         opts.Roles,
		profiles:      opts.Profiles,
		sessions:      opts.Sessions,
		notifier:      opts.Notifier,
		logger:        logger,
		lookupTimeout: timeout,
		state:         domainauth.ResolverState{Resolving: true},
		subs:          make(map[int]func(domainauth.ResolverState)),
	}
}

// Initialize subscribes to the client's session events and settles the
// resolver from any existing session. It is safe to call once.
func (r *SessionResolver) Initialize(ctx context.Context) {
	r.unsub = r.client.Subscribe(func(kind domainauth.SessionEventKind, sess *domainauth.Session) {
		r.onSessionEvent(kind, sess)
	})

	sess, err := r.client.CurrentSession(ctx)
	if err != nil {
		// Unknown backend state settles to signed out rather than leaving
		// guards pending forever.
		r.logger.ErrorContext(ctx, "resolver: current session lookup failed", "err", err)
		r.onSessionEvent(domainauth.SessionEventInitial, nil)
		return
	}
	r.onSessionEvent(domainauth.SessionEventInitial, sess)
}

// Close unsubscribes from the client and waits for in-flight background work.
func (r *SessionResolver) Close() {
	if r.unsub != nil {
		r.unsub()
	}
	r.tasks.Wait()
}

// State returns a snapshot of the resolver's current state.
func (r *SessionResolver) State() domainauth.ResolverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers a state-change callback and immediately delivers the
// current snapshot. It returns an unsubscribe function.
func (r *SessionResolver) Subscribe(fn func(domainauth.ResolverState)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	snapshot := r.state
	r.mu.Unlock()

	fn(snapshot)

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// WaitSettled blocks until all background work spawned so far has finished.
// Primarily for tests and graceful shutdown.
func (r *SessionResolver) WaitSettled() {
	r.tasks.Wait()
}

// onSessionEvent is the single entry point for session changes, whether from
// the initial lookup or the client subscription.
func (r *SessionResolver) onSessionEvent(kind domainauth.SessionEventKind, sess *domainauth.Session) {
	r.mu.Lock()
	r.gen++
	gen := r.gen

	if sess == nil {
		r.state = domainauth.Unauthenticated()
		r.publishLocked()
		r.mu.Unlock()
		return
	}

	// Publish identity immediately; the role stays provisional until
	// resolved below.
	identity := sess.Identity
	sessCopy := *sess
	r.state = domainauth.ResolverState{
		Identity:  &identity,
		Session:   &sessCopy,
		Role:      domainauth.RoleNone,
		Resolving: true,
	}
	r.publishLocked()

	// A valid embedded hint is authoritative: no directory round trip.
	if role, ok := domainauth.ParseRole(string(identity.RoleHint)); ok {
		r.commitRoleLocked(gen, role)
		r.mu.Unlock()
		r.persistSession(kind, sessCopy)
		return
	}
	r.mu.Unlock()
	r.persistSession(kind, sessCopy)

	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		role := r.resolveRole(identity.ID)
		r.mu.Lock()
		r.commitRoleLocked(gen, role)
		r.mu.Unlock()
	}()
}

// resolveRole consults the durable role directory, bounded by the configured
// timeout. Any failure or absence degrades to the least-privileged role so a
// student is never silently promoted and a user is never locked out.
func (r *SessionResolver) resolveRole(userID string) domainauth.Role {
	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()

	role, found, err := r.roles.LookupRole(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "resolver: role lookup failed, defaulting to student",
			"user_id", userID, "err", err)
		return domainauth.RoleStudent
	}
	if !found {
		return domainauth.RoleStudent
	}
	return role
}

// commitRoleLocked settles the role for a generation. Stale generations are
// discarded: a newer event has already superseded this resolution.
func (r *SessionResolver) commitRoleLocked(gen uint64, role domainauth.Role) {
	if gen != r.gen {
		return
	}
	if r.state.Identity == nil {
		return
	}
	r.state.Role = role
	r.state.Resolving = false
	r.publishLocked()
}

type emission struct {
	snapshot domainauth.ResolverState
	fns      []func(domainauth.ResolverState)
}

// publishLocked enqueues the current snapshot for subscribers. It must be
// called with mu held. Subscribers observe commits in order; delivery is
// covered by WaitSettled.
func (r *SessionResolver) publishLocked() {
	if len(r.subs) == 0 {
		return
	}
	fns := make([]func(domainauth.ResolverState), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.emitQueue = append(r.emitQueue, emission{snapshot: r.state, fns: fns})
	r.tasks.Add(1)
	if r.draining {
		return
	}
	r.draining = true
	go r.drainEmissions()
}

func (r *SessionResolver) drainEmissions() {
	for {
		r.mu.Lock()
		if len(r.emitQueue) == 0 {
			r.draining = false
			r.mu.Unlock()
			return
		}
		e := r.emitQueue[0]
		r.emitQueue = r.emitQueue[1:]
		r.mu.Unlock()

		for _, fn := range e.fns {
			fn(e.snapshot)
		}
		r.tasks.Done()
	}
}

// persistSession mirrors session lifecycle into the session store, best effort.
func (r *SessionResolver) persistSession(kind domainauth.SessionEventKind, sess domainauth.Session) {
	if r.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()
	if err := r.sessions.Save(ctx, sess); err != nil {
		r.logger.WarnContext(ctx, "resolver: session persist failed",
			"kind", string(kind), "err", err)
	}
}

// SignIn delegates to the auth client. On success the client emits a session
// event which drives the state transition; on failure state is untouched and
// the user is notified. Blocked accounts are signed back out immediately.
func (r *SessionResolver) SignIn(ctx context.Context, email, password string) error {
	sess, err := r.client.SignIn(ctx, email, password)
	if err != nil {
		r.notify(ports.Notice{
			Level:   ports.NoticeError,
			Title:   "Sign in failed",
			Message: "Check your email and password and try again.",
		})
		return err
	}

	if profile, perr := r.profiles.GetByUser(ctx, sess.Identity.ID); perr == nil && profile.IsBlocked {
		if soErr := r.client.SignOut(ctx); soErr != nil {
			r.logger.ErrorContext(ctx, "resolver: sign out of blocked account failed",
				"user_id", sess.Identity.ID, "err", soErr)
		}
		// The signed_in event already mirrored this session into the
		// store; drop it so no live record survives for a blocked account.
		if r.sessions != nil && sess.Token != "" {
			if delErr := r.sessions.Delete(ctx, sess.Token); delErr != nil {
				r.logger.WarnContext(ctx, "resolver: blocked session delete failed",
					"user_id", sess.Identity.ID, "err", delErr)
			}
		}
		r.notify(ports.Notice{
			Level:   ports.NoticeError,
			Title:   "Account blocked",
			Message: "Your account has been blocked. Contact an administrator.",
		})
		return apperrors.Forbidden("account is blocked")
	}

	r.notify(ports.Notice{Level: ports.NoticeSuccess, Title: "Signed in"})
	return nil
}

// SignUp delegates to the auth client, then provisions the durable profile
// and role records in the background. Provisioning failures are soft: the
// account exists either way, and missing records are compensated for at role
// resolution (default role) and first profile access (get-or-create).
func (r *SessionResolver) SignUp(ctx context.Context, in ports.SignUpInput) error {
	sess, err := r.client.SignUp(ctx, in)
	if err != nil {
		r.notify(ports.Notice{
			Level:   ports.NoticeError,
			Title:   "Sign up failed",
			Message: "Your account could not be created.",
		})
		return err
	}
	r.notify(ports.Notice{Level: ports.NoticeSuccess, Title: "Account created"})

	identity := sess.Identity
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		r.provisionAccount(identity)
	}()
	return nil
}

func (r *SessionResolver) provisionAccount(identity domainauth.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()

	if _, err := r.profiles.Create(ctx, identity.ID, identity.DisplayName, identity.Email); err != nil {
		r.logger.WarnContext(ctx, "resolver: profile provisioning failed",
			"user_id", identity.ID, "err", err)
		r.notify(ports.Notice{
			Level:   ports.NoticeWarning,
			Title:   "Profile setup incomplete",
			Message: "Your profile will be created when you first open it.",
		})
	}

	role := identity.RoleHint
	if role == domainauth.RoleNone {
		role = domainauth.RoleStudent
	}
	// Assign only when missing; never clobber an admin-granted role.
	_, found, err := r.roles.LookupRole(ctx, identity.ID)
	if err == nil && !found {
		err = r.roles.UpsertRole(ctx, identity.ID, role)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "resolver: role provisioning failed",
			"user_id", identity.ID, "err", err)
	}
}

// SignOut delegates to the auth client. A client error leaves state untouched
// so the user can retry; on success the nil session event clears state and
// the stored session is dropped.
func (r *SessionResolver) SignOut(ctx context.Context) error {
	r.mu.Lock()
	var token string
	if r.state.Session != nil {
		token = r.state.Session.Token
	}
	r.mu.Unlock()

	if err := r.client.SignOut(ctx); err != nil {
		r.notify(ports.Notice{
			Level:   ports.NoticeError,
			Title:   "Sign out failed",
			Message: "Please try again.",
		})
		return fmt.Errorf("sign out: %w", err)
	}

	if r.sessions != nil && token != "" {
		if err := r.sessions.Delete(ctx, token); err != nil {
			r.logger.WarnContext(ctx, "resolver: session delete failed", "err", err)
		}
	}
	r.notify(ports.Notice{Level: ports.NoticeSuccess, Title: "Signed out"})
	return nil
}

func (r *SessionResolver) notify(n ports.Notice) {
	if r.notifier != nil {
		r.notifier.Notify(n)
	}
}
