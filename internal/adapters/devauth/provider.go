package devauth

// Package devauth provides an in-memory, config-seeded auth backend for local
// development. It implements the same client/backend split as the hosted
// adapter: one shared Backend holding credentials, and one Client handle per
// browser client emitting session events.

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// SeedUser is one pre-provisioned dev account.
type SeedUser struct {
	Email       string
	Password    string
	DisplayName string
	Role        domainauth.Role
}

// Config controls the dev auth backend behavior.
type Config struct {
	Users           []SeedUser
	SessionDuration time.Duration // default 8h when zero
}

type account struct {
	id           string
	email        string
	displayName  string
	roleHint     domainauth.Role
	passwordHash []byte
}

// Backend is the shared in-memory identity registry. It also implements
// ports.IdentityAdmin for privileged deletion.
type Backend struct {
	mu              sync.Mutex
	accounts        map[string]*account // keyed by lowercased email
	sessionDuration time.Duration
}

// NewBackend constructs a dev auth backend, hashing seed passwords up front.
func NewBackend(cfg Config) (*Backend, error) {
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	b := &Backend{
		accounts:        make(map[string]*account, len(cfg.Users)),
		sessionDuration: dur,
	}
	for _, u := range cfg.Users {
		if u.Email == "" || u.Password == "" {
			return nil, errors.New("dev auth: seed users need email and password")
		}
		if _, err := b.register(u.Email, u.Password, u.DisplayName, u.Role); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) register(email, password, displayName string, role domainauth.Role) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[key]; exists {
		return nil, apperrors.Conflict("an account with this email already exists")
	}
	acct := &account{
		id:           uuid.NewString(),
		email:        key,
		displayName:  displayName,
		roleHint:     role,
		passwordHash: hash,
	}
	b.accounts[key] = acct
	return acct, nil
}

func (b *Backend) signIn(email, password string) (domainauth.Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	acct, ok := b.accounts[key]
	b.mu.Unlock()
	if !ok {
		return domainauth.Session{}, apperrors.Unauthenticated("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return domainauth.Session{}, apperrors.Unauthenticated("invalid email or password")
	}
	return b.newSession(acct), nil
}

func (b *Backend) newSession(acct *account) domainauth.Session {
	return domainauth.Session{
		Token: uuid.NewString(),
		Identity: domainauth.Identity{
			ID:          acct.id,
			Email:       acct.email,
			DisplayName: acct.displayName,
			RoleHint:    acct.roleHint,
		},
		ExpiresAt: time.Now().Add(b.sessionDuration),
	}
}

// DeleteIdentity removes an account from the registry.
func (b *Backend) DeleteIdentity(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, acct := range b.accounts {
		if acct.id == userID {
			delete(b.accounts, key)
			return nil
		}
	}
	return apperrors.NotFound("identity not found")
}

// NewClient hands out a fresh per-browser-client handle.
func (b *Backend) NewClient() *Client {
	return b.NewClientWithSession(nil)
}

// NewClientWithSession hands out a client seeded with a previously stored
// session, so a returning browser finds its session on initialization.
func (b *Backend) NewClientWithSession(sess *domainauth.Session) *Client {
	c := &Client{
		backend: b,
		subs:    make(map[int]ports.SessionCallback),
	}
	if sess != nil && !sess.Expired(time.Now()) {
		cp := *sess
		c.current = &cp
	}
	return c
}

// Client is one browser client's handle on the dev backend.
type Client struct {
	backend *Backend

	mu      sync.Mutex
	current *domainauth.Session
	subs    map[int]ports.SessionCallback
	nextSub int
}

// CurrentSession returns the client's live session, or nil when there is none
// or it has expired.
func (c *Client) CurrentSession(_ context.Context) (*domainauth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Expired(time.Now()) {
		return nil, nil
	}
	sess := *c.current
	return &sess, nil
}

// Subscribe registers a session event callback and returns an unsubscribe function.
func (c *Client) Subscribe(cb ports.SessionCallback) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SignIn exchanges credentials for a session and emits a signed_in event.
func (c *Client) SignIn(_ context.Context, email, password string) (domainauth.Session, error) {
	sess, err := c.backend.signIn(email, password)
	if err != nil {
		return domainauth.Session{}, err
	}
	c.setSession(domainauth.SessionEventSignedIn, &sess)
	return sess, nil
}

// SignUp registers a new account, signs it in, and emits a signed_up event.
func (c *Client) SignUp(_ context.Context, in ports.SignUpInput) (domainauth.Session, error) {
	if in.Email == "" || in.Password == "" {
		return domainauth.Session{}, apperrors.Validation("email and password are required")
	}
	acct, err := c.backend.register(in.Email, in.Password, in.DisplayName, in.Role)
	if err != nil {
		return domainauth.Session{}, err
	}
	sess := c.backend.newSession(acct)
	c.setSession(domainauth.SessionEventSignedUp, &sess)
	return sess, nil
}

// SignOut drops the client's session and emits a signed_out event.
func (c *Client) SignOut(_ context.Context) error {
	c.setSession(domainauth.SessionEventSignedOut, nil)
	return nil
}

// setSession commits the new session and notifies subscribers outside the
// lock, so callbacks may call back into the client.
func (c *Client) setSession(kind domainauth.SessionEventKind, sess *domainauth.Session) {
	c.mu.Lock()
	c.current = sess
	cbs := make([]ports.SessionCallback, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(kind, sess)
	}
}
