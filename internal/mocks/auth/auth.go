package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthClient       = (*FakeAuthClient)(nil)
	_ ports.IdentityAdmin    = (*FakeAuthClient)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.RoleDirectory    = (*FakeRoleDirectory)(nil)
	_ ports.ProfileDirectory = (*FakeProfileDirectory)(nil)
	_ ports.Notifier         = (*RecordingNotifier)(nil)
	_ ports.OpsNotifier      = (*RecordingOpsNotifier)(nil)
)

// FakeAuthClient simulates one browser client's auth backend handle.
// Behavior is overridable per call via the *Func fields; Emit drives session
// events directly for subscription-level tests.
type FakeAuthClient struct {
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignInFunc         func(ctx context.Context, email, password string) (domainauth.Session, error)
	SignUpFunc         func(ctx context.Context, in ports.SignUpInput) (domainauth.Session, error)
	SignOutFunc        func(ctx context.Context) error
	DeleteIdentityFunc func(ctx context.Context, userID string) error

	mu      sync.Mutex
	subs    map[int]ports.SessionCallback
	nextSub int
}

// NewFakeAuthClient creates a client with no current session and default
// success behavior.
func NewFakeAuthClient() *FakeAuthClient {
	return &FakeAuthClient{subs: make(map[int]ports.SessionCallback)}
}

// NewSession builds a session for tests, one hour from expiry.
func NewSession(userID, email string, hint domainauth.Role) domainauth.Session {
	return domainauth.Session{
		Token: "token-" + userID,
		Identity: domainauth.Identity{
			ID:          userID,
			Email:       email,
			DisplayName: "Test User",
			RoleHint:    hint,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (f *FakeAuthClient) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	if f.CurrentSessionFunc != nil {
		return f.CurrentSessionFunc(ctx)
	}
	return nil, nil
}

func (f *FakeAuthClient) Subscribe(cb ports.SessionCallback) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = cb
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers a session event to all subscribers.
func (f *FakeAuthClient) Emit(kind domainauth.SessionEventKind, sess *domainauth.Session) {
	f.mu.Lock()
	cbs := make([]ports.SessionCallback, 0, len(f.subs))
	for _, cb := range f.subs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(kind, sess)
	}
}

func (f *FakeAuthClient) SignIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	if f.SignInFunc != nil {
		sess, err := f.SignInFunc(ctx, email, password)
		if err != nil {
			return domainauth.Session{}, err
		}
		f.Emit(domainauth.SessionEventSignedIn, &sess)
		return sess, nil
	}
	sess := NewSession("user-1", email, domainauth.RoleNone)
	f.Emit(domainauth.SessionEventSignedIn, &sess)
	return sess, nil
}

func (f *FakeAuthClient) SignUp(ctx context.Context, in ports.SignUpInput) (domainauth.Session, error) {
	if f.SignUpFunc != nil {
		sess, err := f.SignUpFunc(ctx, in)
		if err != nil {
			return domainauth.Session{}, err
		}
		f.Emit(domainauth.SessionEventSignedUp, &sess)
		return sess, nil
	}
	sess := NewSession("user-new", in.Email, in.Role)
	sess.Identity.DisplayName = in.DisplayName
	f.Emit(domainauth.SessionEventSignedUp, &sess)
	return sess, nil
}

func (f *FakeAuthClient) SignOut(ctx context.Context) error {
	if f.SignOutFunc != nil {
		if err := f.SignOutFunc(ctx); err != nil {
			return err
		}
	}
	f.Emit(domainauth.SessionEventSignedOut, nil)
	return nil
}

func (f *FakeAuthClient) DeleteIdentity(ctx context.Context, userID string) error {
	if f.DeleteIdentityFunc != nil {
		return f.DeleteIdentityFunc(ctx, userID)
	}
	return nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Token] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, token string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessionStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, sess := range m.sessions {
		if sess.Identity.ID == userID {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions are stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ErrNotFound is returned by mocks when an entity is not present. It carries
// the not_found app error code so apperrors.IsNotFound recognizes it, matching
// the real repositories.
var ErrNotFound error = apperrors.NotFound("not found")

// FakeRoleDirectory is an in-memory role directory. LookupDelay and LookupErr
// let tests simulate slow or failing directories.
type FakeRoleDirectory struct {
	mu    sync.Mutex
	roles map[string]domainauth.Role

	LookupDelay time.Duration
	LookupErr   error
}

// NewFakeRoleDirectory creates a role directory seeded with the given assignments.
func NewFakeRoleDirectory(seed map[string]domainauth.Role) *FakeRoleDirectory {
	roles := make(map[string]domainauth.Role, len(seed))
	for k, v := range seed {
		roles[k] = v
	}
	return &FakeRoleDirectory{roles: roles}
}

func (f *FakeRoleDirectory) LookupRole(ctx context.Context, userID string) (domainauth.Role, bool, error) {
	if f.LookupDelay > 0 {
		select {
		case <-ctx.Done():
			return domainauth.RoleNone, false, ctx.Err()
		case <-time.After(f.LookupDelay):
		}
	}
	if f.LookupErr != nil {
		return domainauth.RoleNone, false, f.LookupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[userID]
	return role, ok, nil
}

func (f *FakeRoleDirectory) UpsertRole(_ context.Context, userID string, role domainauth.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = role
	return nil
}

func (f *FakeRoleDirectory) DeleteRole(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, userID)
	return nil
}

// FakeProfileDirectory is an in-memory profile directory keyed by user ID.
type FakeProfileDirectory struct {
	mu       sync.Mutex
	profiles map[string]model.Profile

	CreateErr error
	DeleteErr error
}

// NewFakeProfileDirectory creates an empty profile directory.
func NewFakeProfileDirectory() *FakeProfileDirectory {
	return &FakeProfileDirectory{profiles: make(map[string]model.Profile)}
}

func (f *FakeProfileDirectory) GetByUser(_ context.Context, userID string) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *FakeProfileDirectory) Create(_ context.Context, userID, name, email string) (model.Profile, error) {
	if f.CreateErr != nil {
		return model.Profile{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := model.Profile{
		ID:        "profile-" + userID,
		UserID:    userID,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.profiles[userID] = p
	return p, nil
}

func (f *FakeProfileDirectory) Update(_ context.Context, userID string, in model.UpsertProfileRequest) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	p.Name = in.Name
	p.Phone = in.Phone
	p.DateOfBirth = in.DateOfBirth
	p.Address = in.Address
	p.UpdatedAt = time.Now()
	f.profiles[userID] = p
	return p, nil
}

func (f *FakeProfileDirectory) SetPictureURL(_ context.Context, userID, url string) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	p.ProfilePictureURL = &url
	f.profiles[userID] = p
	return p, nil
}

func (f *FakeProfileDirectory) SetBlocked(_ context.Context, userID string, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.IsBlocked = blocked
	f.profiles[userID] = p
	return nil
}

func (f *FakeProfileDirectory) List(_ context.Context, opts model.StudentListOptions) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		if opts.Blocked != nil && p.IsBlocked != *opts.Blocked {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *FakeProfileDirectory) Delete(_ context.Context, userID string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, userID)
	return nil
}

// Has reports whether a profile exists for the user.
func (f *FakeProfileDirectory) Has(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.profiles[userID]
	return ok
}

// RecordingNotifier captures notices for assertions.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []ports.Notice
}

// NewRecordingNotifier creates an empty notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(notice ports.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

// Notices returns a copy of the captured notices.
func (n *RecordingNotifier) Notices() []ports.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.Notice, len(n.notices))
	copy(out, n.notices)
	return out
}

// RecordingOpsNotifier captures operator alerts for assertions.
type RecordingOpsNotifier struct {
	mu     sync.Mutex
	alerts []string

	Err error
}

// NewRecordingOpsNotifier creates an empty ops notifier.
func NewRecordingOpsNotifier() *RecordingOpsNotifier {
	return &RecordingOpsNotifier{}
}

func (n *RecordingOpsNotifier) Alert(_ context.Context, subject, detail string) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, subject+": "+detail)
	return nil
}

// Alerts returns a copy of the captured alerts.
func (n *RecordingOpsNotifier) Alerts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.alerts))
	copy(out, n.alerts)
	return out
}
