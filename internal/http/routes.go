package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Registry  *ClientRegistry
	Courses   *service.CourseService
	Feedback  *service.FeedbackService
	Profiles  *service.ProfileService
	Analytics *service.AnalyticsService
	Accounts  *service.AccountService
	// SignupPolicy is optional; nil admits every email domain.
	SignupPolicy *service.SignupPolicy
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router. Every route except
// /healthz runs behind the client registry middleware so it can reach the
// browser's resolver; guarded routes additionally pass the role guard.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Policy:       services.SignupPolicy,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}
	courseHandlers := &CourseHandlers{Svc: services.Courses}
	feedbackHandlers := &FeedbackHandlers{Svc: services.Feedback}
	profileHandlers := &ProfileHandlers{Svc: services.Profiles}
	adminHandlers := &AdminHandlers{
		Analytics: services.Analytics,
		Feedback:  services.Feedback,
		Accounts:  services.Accounts,
	}

	registerAuthRoutes(mux, authHandlers)
	registerCourseRoutes(mux, courseHandlers)
	registerFeedbackRoutes(mux, feedbackHandlers)
	registerProfileRoutes(mux, profileHandlers)
	registerAdminRoutes(mux, adminHandlers)

	// Health checks stay outside the client middleware so probes never
	// allocate a browser client.
	outer := http.NewServeMux()
	outer.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	outer.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	outer.Handle("/", WithClient(services.Registry)(mux))

	return outer
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /api/auth/signup", h.SignUp)
	mux.HandleFunc("POST /api/auth/signin", h.SignIn)
	mux.HandleFunc("POST /api/auth/signout", h.SignOut)
	mux.HandleFunc("GET /api/auth/status", h.Status)
}

func registerCourseRoutes(mux *http.ServeMux, h *CourseHandlers) {
	student := RequireAuth()
	admin := RequireRole(domainauth.RoleAdmin)

	mux.Handle("GET /api/courses", student(http.HandlerFunc(h.List)))

	mux.Handle("GET /api/admin/courses", admin(http.HandlerFunc(h.AdminList)))
	mux.Handle("POST /api/admin/courses", admin(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/admin/courses/{id}", admin(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/admin/courses/{id}", admin(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/admin/courses/{id}", admin(http.HandlerFunc(h.Delete)))
}

func registerFeedbackRoutes(mux *http.ServeMux, h *FeedbackHandlers) {
	student := RequireAuth()

	mux.Handle("POST /api/feedback", student(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/feedback", student(http.HandlerFunc(h.ListMine)))
	mux.Handle("PUT /api/feedback/{id}", student(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/feedback/{id}", student(http.HandlerFunc(h.Delete)))
}

func registerProfileRoutes(mux *http.ServeMux, h *ProfileHandlers) {
	student := RequireAuth()

	mux.Handle("GET /api/profile", student(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/profile", student(http.HandlerFunc(h.Update)))
	mux.Handle("POST /api/profile/picture", student(http.HandlerFunc(h.UploadPicture)))
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers) {
	admin := RequireRole(domainauth.RoleAdmin)

	mux.Handle("GET /api/admin/overview", admin(http.HandlerFunc(h.Overview)))
	mux.Handle("GET /api/admin/feedback", admin(http.HandlerFunc(h.ListFeedback)))
	mux.Handle("GET /api/admin/students", admin(http.HandlerFunc(h.ListStudents)))
	mux.Handle("GET /api/admin/students/{id}", admin(http.HandlerFunc(h.GetStudent)))
	mux.Handle("POST /api/admin/students/{id}/block", admin(http.HandlerFunc(h.BlockStudent)))
	mux.Handle("DELETE /api/admin/students/{id}", admin(http.HandlerFunc(h.DeleteStudent)))
}
