package bootstrap

import (
	"context"
	"fmt"

	"github.com/courselens/courselens-api/config"
	"github.com/courselens/courselens-api/internal/adapters/devauth"
	"github.com/courselens/courselens-api/internal/adapters/hostedauth"
	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	httpx "github.com/courselens/courselens-api/internal/http"
	"github.com/courselens/courselens-api/internal/ports"
)

// AuthRuntime is the auth backend selected by configuration. NewClient builds
// per-browser auth clients for the client registry; Identities performs
// privileged account operations.
type AuthRuntime struct {
	NewClient  httpx.NewAuthClientFunc
	Identities ports.IdentityAdmin
}

// BuildAuthRuntime creates the auth backend for the configured auth mode.
func BuildAuthRuntime(ctx context.Context, cfg config.AuthConfig) (AuthRuntime, error) {
	switch cfg.Mode {
	case config.AuthModeDev:
		return buildDevAuthRuntime(cfg.Dev)
	case config.AuthModeHosted:
		return buildHostedAuthRuntime(ctx, cfg.Hosted)
	default:
		return AuthRuntime{}, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
	}
}

func buildDevAuthRuntime(cfg config.DevAuthConfig) (AuthRuntime, error) {
	backend, err := devauth.NewBackend(devauth.Config{
		Users: []devauth.SeedUser{
			{
				Email:       cfg.StudentEmail,
				Password:    cfg.StudentPassword,
				DisplayName: "Dev Student",
				Role:        domainauth.RoleStudent,
			},
			{
				Email:       cfg.AdminEmail,
				Password:    cfg.AdminPassword,
				DisplayName: "Dev Admin",
				Role:        domainauth.RoleAdmin,
			},
		},
		SessionDuration: cfg.SessionDuration,
	})
	if err != nil {
		return AuthRuntime{}, fmt.Errorf("create dev auth backend: %w", err)
	}

	return AuthRuntime{
		NewClient: func(existing *domainauth.Session) ports.AuthClient {
			if existing != nil {
				return backend.NewClientWithSession(existing)
			}
			return backend.NewClient()
		},
		Identities: backend,
	}, nil
}

func buildHostedAuthRuntime(ctx context.Context, cfg config.HostedAuthConfig) (AuthRuntime, error) {
	backend, err := hostedauth.NewBackend(ctx, hostedauth.BackendConfig{
		BaseURL:      cfg.BaseURL,
		Issuer:       cfg.Issuer,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AdminKey:     cfg.AdminKey,
	})
	if err != nil {
		return AuthRuntime{}, fmt.Errorf("create hosted auth backend: %w", err)
	}

	return AuthRuntime{
		NewClient: func(existing *domainauth.Session) ports.AuthClient {
			if existing != nil {
				return backend.NewClientWithSession(existing)
			}
			return backend.NewClient()
		},
		Identities: backend,
	}, nil
}
