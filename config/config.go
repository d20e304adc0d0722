package config

import (
	"os"
	"strings"
	"time"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - observability.go: Operator alert configuration
//   - storage.go: Object storage configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Resolver configuration
	Resolver ResolverConfig

	// Sign-up policy configuration
	SignupPolicy SignupPolicyConfig

	// Operator alert configuration
	Ops OpsConfig

	// Object storage configuration
	Storage StorageConfig
}

// ResolverConfig tunes the per-client session/role resolver.
type ResolverConfig struct {
	// RoleLookupTimeout bounds the durable role lookup per session event.
	// Lookups that run past it settle the role to student.
	RoleLookupTimeout time.Duration `env:"RESOLVER_ROLE_LOOKUP_TIMEOUT" envDefault:"3s"`

	// ClientIdleTimeout controls when an inactive browser client's resolver
	// is evicted from the registry.
	ClientIdleTimeout time.Duration `env:"RESOLVER_CLIENT_IDLE_TIMEOUT" envDefault:"1h"`
}

// Sanitize applies guardrails to resolver configuration values.
func (r *ResolverConfig) Sanitize() {
	if r.RoleLookupTimeout <= 0 {
		r.RoleLookupTimeout = 3 * time.Second
	}
	if r.ClientIdleTimeout <= 0 {
		r.ClientIdleTimeout = time.Hour
	}
}

// SignupPolicyConfig restricts account registration by email domain.
type SignupPolicyConfig struct {
	// AllowedDomains lists the registrable domains admitted at sign-up.
	// Empty admits every domain.
	AllowedDomains []string `env:"SIGNUP_ALLOWED_DOMAINS" envSeparator:"," envDefault:""`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Resolver.Sanitize()
	c.Ops.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
