package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeHosted uses the hosted auth service (password grant + JWT verification).
	AuthModeHosted AuthMode = "hosted"
	// AuthModeDev uses the in-memory dev auth backend (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "hosted", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: hosted, dev)", v)
	}
}

// HostedAuthConfig contains hosted auth service configuration.
// Used when AUTH_MODE=hosted.
type HostedAuthConfig struct {
	// BaseURL is the root of the hosted auth service.
	BaseURL string `env:"BASE_URL"`
	// Issuer is the OIDC issuer used to verify access tokens.
	// Defaults to BaseURL when empty.
	Issuer       string `env:"ISSUER"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"courselens"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// AdminKey authorizes privileged identity operations (account deletion).
	AdminKey string `env:"ADMIN_KEY"`
}

// DevAuthConfig controls the in-memory dev auth backend.
// Used when AUTH_MODE=dev for development and testing.
type DevAuthConfig struct {
	StudentEmail    string        `env:"STUDENT_EMAIL"    envDefault:"student@courselens.local"`
	StudentPassword string        `env:"STUDENT_PASSWORD" envDefault:"student-pass"`
	AdminEmail      string        `env:"ADMIN_EMAIL"      envDefault:"admin@courselens.local"`
	AdminPassword   string        `env:"ADMIN_PASSWORD"   envDefault:"admin-pass"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"dev"`

	// Hosted configuration (used when Mode=hosted).
	Hosted HostedAuthConfig `envPrefix:"HOSTED_AUTH_"`

	// Dev configuration (used when Mode=dev).
	Dev DevAuthConfig `envPrefix:"DEV_AUTH_"`
}
