package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
	"github.com/courselens/courselens-api/internal/service"
)

const minPasswordLen = 6

// AuthHandlers provides HTTP handlers for sign-up, sign-in, sign-out, and the
// status poll that drives the client-side guard.
type AuthHandlers struct {
	// Policy is optional; nil admits every email domain.
	Policy       *service.SignupPolicy
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// statusResponse is the resolver state snapshot returned by auth endpoints.
// Pending mirrors the resolver's Resolving flag: the role is provisional and
// clients must poll again before trusting it.
type statusResponse struct {
	Authenticated bool                 `json:"authenticated"`
	Pending       bool                 `json:"pending"`
	Role          domainauth.Role      `json:"role,omitempty"`
	User          *domainauth.Identity `json:"user,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	Notices       []ports.Notice       `json:"notices,omitempty"`
}

func statusFromState(state domainauth.ResolverState, notices []ports.Notice) statusResponse {
	resp := statusResponse{
		Authenticated: state.Authenticated(),
		Pending:       state.Resolving,
		Role:          state.Role,
		User:          state.Identity,
		Notices:       notices,
	}
	if state.Session != nil && !state.Session.ExpiresAt.IsZero() {
		expires := state.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// SignUp handles account registration.
// POST /api/auth/signup.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	c, ok := ClientFromContext(r.Context())
	if !ok {
		writeClientMissing(w)
		return
	}

	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := validateSignUp(&req); err != nil {
		WriteAppError(w, err)
		return
	}
	if h.Policy != nil {
		if err := h.Policy.Check(req.Email); err != nil {
			WriteAppError(w, err)
			return
		}
	}

	role := domainauth.RoleNone
	if req.Role != "" {
		parsed, valid := domainauth.ParseRole(req.Role)
		if !valid {
			WriteAppError(w, apperrors.ValidationField("role", "role must be student or admin"))
			return
		}
		role = parsed
	}

	err := c.Resolver.SignUp(r.Context(), ports.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	state := c.Resolver.State()
	h.setSessionCookie(w, r, state.Session)
	WriteJSON(w, http.StatusCreated, statusFromState(state, c.Notices.Drain()))
}

// SignIn handles credential sign-in.
// POST /api/auth/signin.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	c, ok := ClientFromContext(r.Context())
	if !ok {
		writeClientMissing(w)
		return
	}

	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := c.Resolver.SignIn(r.Context(), req.Email, req.Password); err != nil {
		// Blocked accounts surface as forbidden; bad credentials as
		// unauthenticated. Both bodies carry the drained notices so the
		// client can show them.
		WriteJSON(w, statusForSignInError(err), map[string]any{
			"error":   string(apperrors.GetCode(err)),
			"message": err.Error(),
			"notices": c.Notices.Drain(),
		})
		return
	}

	state := c.Resolver.State()
	h.setSessionCookie(w, r, state.Session)
	WriteJSON(w, http.StatusOK, statusFromState(state, c.Notices.Drain()))
}

func statusForSignInError(err error) int {
	if apperrors.IsForbidden(err) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// SignOut handles sign-out.
// POST /api/auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	c, ok := ClientFromContext(r.Context())
	if !ok {
		writeClientMissing(w)
		return
	}

	if err := c.Resolver.SignOut(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "sign out failed", "err", err)
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "signout_failed", Err: err})
		return
	}

	h.clearSessionCookie(w, r)
	WriteJSON(w, http.StatusOK, statusFromState(c.Resolver.State(), c.Notices.Drain()))
}

// Status returns the resolver state snapshot plus any pending notices.
// GET /api/auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	c, ok := ClientFromContext(r.Context())
	if !ok {
		writeClientMissing(w)
		return
	}
	WriteJSON(w, http.StatusOK, statusFromState(c.Resolver.State(), c.Notices.Drain()))
}

func validateSignUp(req *signUpRequest) error {
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return apperrors.ValidationField("email", "a valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		return apperrors.ValidationField("password", "password must be at least 6 characters")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return apperrors.ValidationField("display_name", "display name is required")
	}
	return nil
}

func writeClientMissing(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "client_missing",
		Err:     errors.New("client registry middleware not installed"),
	})
}

// setSessionCookie mirrors the session token into a cookie so the registry
// can recover the session after a server restart. Nil sessions are a no-op.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s *domainauth.Session) {
	if s == nil || s.Token == "" {
		return
	}
	maxAge := 0
	if !s.ExpiresAt.IsZero() {
		maxAge = int(time.Until(s.ExpiresAt).Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clearSessionCookie expires the session cookie on the client.
func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
