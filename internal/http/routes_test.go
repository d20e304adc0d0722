package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/courselens/courselens-api/internal/adapters/devauth"
	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/domain/model"
	"github.com/courselens/courselens-api/internal/mocks"
	authmocks "github.com/courselens/courselens-api/internal/mocks/auth"
	"github.com/courselens/courselens-api/internal/ports"
	"github.com/courselens/courselens-api/internal/service"
)

// stubFileStore satisfies ports.FileStore for profile picture tests.
type stubFileStore struct {
	lastKey string
}

func (s *stubFileStore) Upload(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	s.lastKey = key
	return "https://cdn.example.com/" + key, nil
}

func (s *stubFileStore) Remove(_ context.Context, _ string) error { return nil }

// testEnv wires a full router over the dev auth backend, fake directories,
// and gomock repositories, with a cookie jar so requests behave like one
// browser.
type testEnv struct {
	t            *testing.T
	router       http.Handler
	backend      *devauth.Backend
	store        *authmocks.MemorySessionStore
	roles        *authmocks.FakeRoleDirectory
	profiles     *authmocks.FakeProfileDirectory
	courseRepo   *mocks.MockCourseRepository
	feedbackRepo *mocks.MockFeedbackRepository
	statsRepo    *mocks.MockStatsRepository
	files        *stubFileStore

	cookies map[string]*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := devauth.NewBackend(devauth.Config{Users: []devauth.SeedUser{
		{Email: "admin@example.com", Password: "admin-pass", DisplayName: "Admin", Role: domainauth.RoleAdmin},
		{Email: "student@example.com", Password: "student-pass", DisplayName: "Student", Role: domainauth.RoleStudent},
	}})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	env := &testEnv{
		t:            t,
		backend:      backend,
		store:        authmocks.NewMemorySessionStore(),
		roles:        authmocks.NewFakeRoleDirectory(nil),
		profiles:     authmocks.NewFakeProfileDirectory(),
		courseRepo:   mocks.NewMockCourseRepository(ctrl),
		feedbackRepo: mocks.NewMockFeedbackRepository(ctrl),
		statsRepo:    mocks.NewMockStatsRepository(ctrl),
		files:        &stubFileStore{},
		cookies:      make(map[string]*http.Cookie),
	}
	env.router = env.buildRouter()
	return env
}

func (e *testEnv) buildRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := NewClientRegistry(ClientRegistryOptions{
		NewAuthClient: func(existing *domainauth.Session) ports.AuthClient {
			return e.backend.NewClientWithSession(existing)
		},
		Roles:    e.roles,
		Profiles: e.profiles,
		Sessions: e.store,
		Logger:   logger,
	})
	e.t.Cleanup(registry.Close)

	return NewRouter(RouterServices{
		Registry:  registry,
		Courses:   service.NewCourseService(e.courseRepo),
		Feedback:  service.NewFeedbackService(e.feedbackRepo, e.courseRepo),
		Profiles:  service.NewProfileService(e.profiles, e.files),
		Analytics: service.NewAnalyticsService(e.statsRepo, e.profiles, e.feedbackRepo),
		Accounts: service.NewAccountService(service.AccountServiceOptions{
			Profiles:   e.profiles,
			Roles:      e.roles,
			Feedback:   e.feedbackRepo,
			Sessions:   e.store,
			Identities: e.backend,
			Logger:     logger,
		}),
		Logger: logger,
	})
}

// do sends a request through the router, carrying and collecting cookies the
// way a browser would.
func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, rdr)
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func (e *testEnv) signIn(email, password string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, env.cookies, "health checks must not allocate a client")
}

func TestSignUp_ProvisionsAndAuthenticates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":        "new@example.com",
		"password":     "secret-pass",
		"display_name": "New Student",
		"role":         "student",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, false, body["pending"])
	assert.Equal(t, "student", body["role"])
	assert.NotEmpty(t, env.cookies[sessionCookieName], "session cookie must be set")

	// Profile and role provisioning runs in the background.
	require.Eventually(t, func() bool {
		users, _ := env.profiles.List(context.Background(), model.StudentListOptions{})
		return len(users) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSignUp_RejectsDisallowedDomain(t *testing.T) {
	env := newTestEnv(t)

	// Rebuild the router with a restrictive policy in place.
	registry := NewClientRegistry(ClientRegistryOptions{
		NewAuthClient: func(existing *domainauth.Session) ports.AuthClient {
			return env.backend.NewClientWithSession(existing)
		},
		Roles:    env.roles,
		Profiles: env.profiles,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(registry.Close)
	env.router = NewRouter(RouterServices{
		Registry:     registry,
		Courses:      service.NewCourseService(env.courseRepo),
		Feedback:     service.NewFeedbackService(env.feedbackRepo, env.courseRepo),
		Profiles:     service.NewProfileService(env.profiles, env.files),
		Analytics:    service.NewAnalyticsService(env.statsRepo, env.profiles, env.feedbackRepo),
		SignupPolicy: service.NewSignupPolicy([]string{"example.edu"}),
	})

	rec := env.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":        "outsider@example.com",
		"password":     "secret-pass",
		"display_name": "Outsider",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")
}

func TestSignIn_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "unauthenticated", body["error"])
	assert.NotEmpty(t, body["notices"], "failure notice must reach the client")
}

func TestSignIn_BlockedAccount(t *testing.T) {
	env := newTestEnv(t)

	// First sign-in provisions nothing; seed the profile and block it.
	_, err := env.profiles.Create(context.Background(), "", "Student", "student@example.com")
	require.NoError(t, err)

	// The dev backend assigns its own IDs; find it via a throwaway sign-in.
	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	userID := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)
	env.do(http.MethodPost, "/api/auth/signout", nil)

	_, err = env.profiles.Create(context.Background(), userID, "Student", "student@example.com")
	require.NoError(t, err)
	require.NoError(t, env.profiles.SetBlocked(context.Background(), userID, true))

	rec = env.signIn("student@example.com", "student-pass")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "blocked")
}

func TestStudentCannotReachAdminRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/overview", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_permissions")
}

func TestUnauthenticatedAPIGets401(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/feedback", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOverview(t *testing.T) {
	env := newTestEnv(t)

	env.statsRepo.EXPECT().CountStudents(gomock.Any()).Return(12, nil)
	env.statsRepo.EXPECT().CountCourses(gomock.Any()).Return(4, nil)
	env.statsRepo.EXPECT().FeedbackSummary(gomock.Any()).Return(37, 4.2666, nil)
	env.statsRepo.EXPECT().CourseRatingBuckets(gomock.Any()).Return([]model.CourseRatingBucket{
		{CourseCode: "CS101", CourseName: "Intro", AverageRating: 4.4499, FeedbackCount: 20},
	}, nil)

	rec := env.signIn("admin@example.com", "admin-pass")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/admin/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	stats := body["stats"].(map[string]any)
	assert.InDelta(t, 12, stats["total_students"], 0)
	assert.InDelta(t, 4.3, stats["average_rating"], 0.001)
	courses := body["courses"].([]any)
	require.Len(t, courses, 1)
	assert.InDelta(t, 4.4, courses[0].(map[string]any)["average_rating"], 0.001)
}

func TestFeedbackSubmitAndList(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	userID := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)

	course := model.Course{ID: "course-1", Name: "Intro", Code: "CS101", IsActive: true}
	env.courseRepo.EXPECT().Get(gomock.Any(), "course-1").Return(course, nil)
	env.feedbackRepo.EXPECT().
		Create(gomock.Any(), userID, model.CreateFeedbackRequest{CourseID: "course-1", Rating: 5, Message: "great"}).
		Return(model.Feedback{ID: "fb-1", UserID: userID, CourseID: "course-1", Rating: 5, Message: "great"}, nil)

	rec = env.do(http.MethodPost, "/api/feedback", map[string]any{
		"course_id": "course-1",
		"rating":    5,
		"message":   "great",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env.feedbackRepo.EXPECT().ListByUser(gomock.Any(), userID).Return([]model.FeedbackWithCourse{
		{Feedback: model.Feedback{ID: "fb-1", Rating: 5}, CourseName: "Intro", CourseCode: "CS101"},
	}, nil)

	rec = env.do(http.MethodGet, "/api/feedback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CS101")
}

func TestFeedbackRejectsInvalidRating(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/feedback", map[string]any{
		"course_id": "course-1",
		"rating":    9,
		"message":   "great",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "rating")
}

func TestSignOutClearsSessionAndGuards(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.store.Len(), "session must be mirrored to the store")

	rec = env.do(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.store.Len())
	assert.NotContains(t, env.cookies, sessionCookieName)

	rec = env.do(http.MethodGet, "/api/feedback", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionSurvivesRouterRestart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)

	// Simulate a server restart: a fresh registry and router sharing only the
	// durable pieces (auth backend, session store, directories). The client
	// cookie is gone; the session cookie must recover the session.
	env.router = env.buildRouter()
	delete(env.cookies, clientCookieName)

	rec = env.do(http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "student", body["role"])
}

func TestStatusDrainsNoticesOnce(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in")

	rec = env.do(http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Signed in", "notices must drain exactly once")
}

func TestProfileGetOrCreateAndUpdate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	userID := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)

	rec = env.do(http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.profiles.Has(userID), "first access must create the profile")

	rec = env.do(http.MethodPut, "/api/profile", map[string]any{
		"name":  "Renamed Student",
		"phone": "555-0101",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Renamed Student")
}

func TestAdminBlockRevokesSessions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.signIn("student@example.com", "student-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	userID := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)
	studentCookies := env.cookies
	env.cookies = make(map[string]*http.Cookie)

	_, err := env.profiles.Create(context.Background(), userID, "Student", "student@example.com")
	require.NoError(t, err)

	rec = env.signIn("admin@example.com", "admin-pass")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/admin/students/"+userID+"/block", map[string]any{"blocked": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The student's stored session is gone; a restarted client cannot
	// recover it.
	env.router = env.buildRouter()
	env.cookies = studentCookies
	delete(env.cookies, clientCookieName)

	rec = env.do(http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["authenticated"])
}
