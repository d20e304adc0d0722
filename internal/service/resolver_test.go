package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	mocks "github.com/courselens/courselens-api/internal/mocks/auth"
	"github.com/courselens/courselens-api/internal/ports"
)

type resolverFixture struct {
	client   *mocks.FakeAuthClient
	roles    *mocks.FakeRoleDirectory
	profiles *mocks.FakeProfileDirectory
	sessions *mocks.MemorySessionStore
	notifier *mocks.RecordingNotifier
	resolver *SessionResolver
}

func newResolverFixture(t *testing.T, opts ...func(*SessionResolverOptions)) *resolverFixture {
	t.Helper()

	f := &resolverFixture{
		client:   mocks.NewFakeAuthClient(),
		roles:    mocks.NewFakeRoleDirectory(nil),
		profiles: mocks.NewFakeProfileDirectory(),
		sessions: mocks.NewMemorySessionStore(),
		notifier: mocks.NewRecordingNotifier(),
	}
	ro := SessionResolverOptions{
		Client:   f.client,
		Roles:    f.roles,
		Profiles: f.profiles,
		Sessions: f.sessions,
		Notifier: f.notifier,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&ro)
	}
	f.resolver = NewSessionResolver(ro)
	t.Cleanup(f.resolver.Close)
	return f
}

func TestResolver_InitializeWithoutSession(t *testing.T) {
	f := newResolverFixture(t)

	f.resolver.Initialize(context.Background())
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.False(t, state.Authenticated())
	assert.False(t, state.Resolving)
	assert.Equal(t, domainauth.RoleNone, state.Role)
}

func TestResolver_InitializeRecoversExistingSession(t *testing.T) {
	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f := newResolverFixture(t)
	f.client.CurrentSessionFunc = func(context.Context) (*domainauth.Session, error) {
		return &sess, nil
	}
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-1", domainauth.RoleAdmin))

	f.resolver.Initialize(context.Background())
	f.resolver.WaitSettled()

	state := f.resolver.State()
	require.True(t, state.Authenticated())
	assert.Equal(t, "user-1", state.Identity.ID)
	assert.Equal(t, domainauth.RoleAdmin, state.Role)
	assert.False(t, state.Resolving)
}

func TestResolver_InitializeErrorSettlesSignedOut(t *testing.T) {
	f := newResolverFixture(t)
	f.client.CurrentSessionFunc = func(context.Context) (*domainauth.Session, error) {
		return nil, errors.New("backend unreachable")
	}

	f.resolver.Initialize(context.Background())
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.False(t, state.Authenticated())
	assert.False(t, state.Resolving)
}

// A valid embedded role hint is authoritative: the durable directory is never
// allowed to contradict it.
func TestResolver_ValidHintSkipsDirectory(t *testing.T) {
	f := newResolverFixture(t)
	// Contradicting directory record proves the hint wins.
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-1", domainauth.RoleStudent))
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleAdmin)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.Equal(t, domainauth.RoleAdmin, state.Role)
	assert.False(t, state.Resolving)
}

func TestResolver_DirectoryRoleUsedWithoutHint(t *testing.T) {
	f := newResolverFixture(t)
	require.NoError(t, f.roles.UpsertRole(context.Background(), "admin-1", domainauth.RoleAdmin))
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("admin-1", "admin@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()

	assert.Equal(t, domainauth.RoleAdmin, f.resolver.State().Role)
}

func TestResolver_MissingRoleRecordDefaultsToStudent(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.Equal(t, domainauth.RoleStudent, state.Role)
	assert.False(t, state.Resolving)
}

func TestResolver_LookupErrorDefaultsToStudent(t *testing.T) {
	f := newResolverFixture(t)
	f.roles.LookupErr = errors.New("directory unavailable")
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()

	assert.Equal(t, domainauth.RoleStudent, f.resolver.State().Role)
}

func TestResolver_LookupTimeoutDefaultsToStudent(t *testing.T) {
	f := newResolverFixture(t, func(o *SessionResolverOptions) {
		o.RoleLookupTimeout = 10 * time.Millisecond
	})
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-1", domainauth.RoleAdmin))
	f.roles.LookupDelay = 200 * time.Millisecond
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.Equal(t, domainauth.RoleStudent, state.Role)
	assert.False(t, state.Resolving)
}

// Signing out while a role lookup is in flight must leave the resolver signed
// out: the stale resolution is discarded, never committed.
func TestResolver_SignOutDiscardsInFlightResolution(t *testing.T) {
	f := newResolverFixture(t)
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-1", domainauth.RoleAdmin))
	f.roles.LookupDelay = 50 * time.Millisecond
	f.resolver.Initialize(context.Background())

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.client.Emit(domainauth.SessionEventSignedOut, nil)
	f.resolver.WaitSettled()

	state := f.resolver.State()
	assert.False(t, state.Authenticated())
	assert.Equal(t, domainauth.RoleNone, state.Role)
	assert.False(t, state.Resolving)
}

// When session events arrive in quick succession, only the newest event's
// resolution may commit.
func TestResolver_LatestEventWins(t *testing.T) {
	f := newResolverFixture(t)
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-a", domainauth.RoleStudent))
	f.roles.LookupDelay = 50 * time.Millisecond
	f.resolver.Initialize(context.Background())

	first := mocks.NewSession("user-a", "a@example.com", domainauth.RoleNone)
	second := mocks.NewSession("user-b", "b@example.com", domainauth.RoleAdmin)
	f.client.Emit(domainauth.SessionEventSignedIn, &first)
	f.client.Emit(domainauth.SessionEventSignedIn, &second)
	f.resolver.WaitSettled()

	state := f.resolver.State()
	require.True(t, state.Authenticated())
	assert.Equal(t, "user-b", state.Identity.ID)
	assert.Equal(t, domainauth.RoleAdmin, state.Role)
	assert.False(t, state.Resolving)
}

// Identity is published before the role settles, so consumers can render the
// signed-in shell while guards stay pending.
func TestResolver_IdentityPublishedBeforeRoleCommit(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())

	var states []domainauth.ResolverState
	done := make(chan struct{}, 8)
	unsub := f.resolver.Subscribe(func(s domainauth.ResolverState) {
		states = append(states, s)
		done <- struct{}{}
	})
	defer unsub()
	<-done // initial snapshot

	sess := mocks.NewSession("user-1", "u1@example.com", domainauth.RoleNone)
	f.client.Emit(domainauth.SessionEventSignedIn, &sess)
	f.resolver.WaitSettled()
	<-done
	<-done

	require.GreaterOrEqual(t, len(states), 3)
	pending := states[len(states)-2]
	settled := states[len(states)-1]

	require.True(t, pending.Authenticated())
	assert.True(t, pending.Resolving)
	assert.Equal(t, domainauth.RoleNone, pending.Role)

	require.True(t, settled.Authenticated())
	assert.False(t, settled.Resolving)
	assert.Equal(t, domainauth.RoleStudent, settled.Role)
}

func TestResolver_SignInFailureLeavesStateUntouched(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())
	f.resolver.WaitSettled()
	f.client.SignInFunc = func(context.Context, string, string) (domainauth.Session, error) {
		return domainauth.Session{}, apperrors.Unauthenticated("invalid email or password")
	}

	err := f.resolver.SignIn(context.Background(), "u1@example.com", "wrong")
	require.Error(t, err)
	f.resolver.WaitSettled()

	assert.False(t, f.resolver.State().Authenticated())

	notices := f.notifier.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, ports.NoticeError, notices[len(notices)-1].Level)
}

func TestResolver_SignInBlockedAccountIsRejected(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())

	_, err := f.profiles.Create(context.Background(), "user-1", "Blocked User", "u1@example.com")
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetBlocked(context.Background(), "user-1", true))

	err = f.resolver.SignIn(context.Background(), "u1@example.com", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))

	f.resolver.WaitSettled()
	assert.False(t, f.resolver.State().Authenticated())

	// The session mirrored during the signed_in event must not outlive
	// the rejection.
	assert.Equal(t, 0, f.sessions.Len())
}

func TestResolver_SignUpProvisionsProfileAndRole(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())
	f.client.SignUpFunc = func(_ context.Context, in ports.SignUpInput) (domainauth.Session, error) {
		sess := mocks.NewSession("user-new", in.Email, in.Role)
		sess.Identity.DisplayName = in.DisplayName
		return sess, nil
	}

	err := f.resolver.SignUp(context.Background(), ports.SignUpInput{
		Email:       "new@example.com",
		Password:    "pw123456",
		DisplayName: "New Student",
		Role:        domainauth.RoleStudent,
	})
	require.NoError(t, err)
	f.resolver.WaitSettled()

	assert.True(t, f.profiles.Has("user-new"))
	role, found, err := f.roles.LookupRole(context.Background(), "user-new")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domainauth.RoleStudent, role)

	state := f.resolver.State()
	require.True(t, state.Authenticated())
	assert.Equal(t, domainauth.RoleStudent, state.Role)
}

func TestResolver_SignUpDoesNotClobberExistingRole(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())
	require.NoError(t, f.roles.UpsertRole(context.Background(), "user-new", domainauth.RoleAdmin))

	err := f.resolver.SignUp(context.Background(), ports.SignUpInput{
		Email:    "new@example.com",
		Password: "pw123456",
		Role:     domainauth.RoleStudent,
	})
	require.NoError(t, err)
	f.resolver.WaitSettled()

	role, found, err := f.roles.LookupRole(context.Background(), "user-new")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domainauth.RoleAdmin, role)
}

func TestResolver_SignUpProvisioningFailureIsSoft(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())
	f.profiles.CreateErr = errors.New("db down")

	err := f.resolver.SignUp(context.Background(), ports.SignUpInput{
		Email:    "new@example.com",
		Password: "pw123456",
	})
	require.NoError(t, err)
	f.resolver.WaitSettled()

	// The account exists and the session is live despite the failed insert.
	assert.True(t, f.resolver.State().Authenticated())

	var sawWarning bool
	for _, n := range f.notifier.Notices() {
		if n.Level == ports.NoticeWarning {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestResolver_SessionMirroredToStore(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())

	require.NoError(t, f.resolver.SignIn(context.Background(), "u1@example.com", "pw"))
	f.resolver.WaitSettled()

	state := f.resolver.State()
	require.True(t, state.Authenticated())
	_, err := f.sessions.Get(context.Background(), state.Session.Token)
	require.NoError(t, err)

	require.NoError(t, f.resolver.SignOut(context.Background()))
	f.resolver.WaitSettled()
	assert.Equal(t, 0, f.sessions.Len())
	assert.False(t, f.resolver.State().Authenticated())
}

func TestResolver_SignOutFailureKeepsSession(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.Initialize(context.Background())
	require.NoError(t, f.resolver.SignIn(context.Background(), "u1@example.com", "pw"))
	f.resolver.WaitSettled()

	f.client.SignOutFunc = func(context.Context) error {
		return errors.New("backend unreachable")
	}
	err := f.resolver.SignOut(context.Background())
	require.Error(t, err)
	f.resolver.WaitSettled()

	assert.True(t, f.resolver.State().Authenticated())
}
