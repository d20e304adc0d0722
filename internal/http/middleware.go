package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WithClient returns a middleware that resolves the browser's client entry
// via the registry and attaches it to the request context. Every route behind
// it can reach the browser's resolver and flash queue.
func WithClient(registry *ClientRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := registry.GetOrCreate(w, r)
			next.ServeHTTP(w, r.WithContext(setClientInContext(r.Context(), c)))
		})
	}
}

// RequireAuth returns a middleware that admits any authenticated user.
func RequireAuth() func(http.Handler) http.Handler {
	return RequireRole(domainauth.RoleNone)
}

// RequireRole returns the guard middleware. It reads the browser's resolver
// state and maps the authorization decision onto the response:
//
//   - pending: 202 with a pending body; callers retry once resolution settles
//   - unauthenticated: 401 for API calls, 303 to the sign-in page for browsers
//   - forbidden: 403, never a redirect (the user is signed in, just not allowed)
//   - allow: the session goes into the request context
//
// Pass domainauth.RoleNone to admit any authenticated user.
func RequireRole(required domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClientFromContext(r.Context())
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "client_missing",
					Err:     errors.New("client registry middleware not installed"),
				})
				return
			}

			state := c.Resolver.State()
			switch domainauth.Authorize(state, required) {
			case domainauth.DecisionPending:
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})

			case domainauth.DecisionDenyUnauthenticated:
				if isBrowserRequest(r) {
					redirectToSignIn(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})

			case domainauth.DecisionDenyForbidden:
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})

			case domainauth.DecisionAllow:
				ctx := SetSessionInContext(r.Context(), state.Session)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// isBrowserRequest distinguishes interactive browser navigation from API
// calls. API routes and anything not asking for HTML get JSON errors.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// redirectToSignIn sends a browser to the sign-in page, preserving the
// requested path for post-sign-in navigation.
func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	redirect := safeRedirectPath(r.URL.RequestURI())
	http.Redirect(w, r, "/auth/signin?redirect_uri="+url.QueryEscape(redirect), http.StatusSeeOther)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
