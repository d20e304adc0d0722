package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/courselens/courselens-api/config"
	httpx "github.com/courselens/courselens-api/internal/http"
)

// idlePurgeInterval is how often the client registry is swept for idle
// browser clients.
const idlePurgeInterval = 5 * time.Minute

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Registry:     cfg.Services.Registry,
		Courses:      cfg.Services.Courses,
		Feedback:     cfg.Services.Feedback,
		Profiles:     cfg.Services.Profiles,
		Analytics:    cfg.Services.Analytics,
		Accounts:     cfg.Services.Accounts,
		SignupPolicy: cfg.Services.SignupPolicy,
		CookieDomain: appCfg.HTTP.CookieDomain,
		Logger:       logger,
	}

	// Order: Recover -> Logging -> Router
	handler := httpx.NewRouter(services)
	handler = httpx.Logging(logger)(handler)
	handler = httpx.Recover(logger)(handler)

	server := startServer(logger, handler, appCfg.HTTP.Addr)

	return server
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// StartIdlePurge sweeps the client registry until the context is cancelled.
// Browsers that have been silent longer than maxIdle lose their resolver; the
// next request rebuilds it from the session cookie.
func StartIdlePurge(ctx context.Context, registry *httpx.ClientRegistry, maxIdle time.Duration, logger *slog.Logger) {
	if registry == nil || maxIdle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(idlePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if purged := registry.PurgeIdle(maxIdle); purged > 0 && logger != nil {
					logger.InfoContext(ctx, "purged idle clients", "count", purged, "active", registry.Len())
				}
			}
		}
	}()
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Registry *httpx.ClientRegistry
	Logger   *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Stop resolvers after in-flight requests have drained
	if cfg.Registry != nil {
		cfg.Registry.Close()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
