package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/courselens/courselens-api/config"
	"github.com/courselens/courselens-api/internal/adapters/hostedstorage"
	redisadapter "github.com/courselens/courselens-api/internal/adapters/redis"
	"github.com/courselens/courselens-api/internal/data"
	httpx "github.com/courselens/courselens-api/internal/http"
	"github.com/courselens/courselens-api/internal/observability/notify/webhook"
	"github.com/courselens/courselens-api/internal/ports"
	"github.com/courselens/courselens-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Registry  *httpx.ClientRegistry
	Courses   *service.CourseService
	Feedback  *service.FeedbackService
	Profiles  *service.ProfileService
	Analytics *service.AnalyticsService
	Accounts  *service.AccountService
	// SignupPolicy is nil when registration is open to every email domain.
	SignupPolicy *service.SignupPolicy
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Courses  *data.CourseRepo
	Feedback *data.FeedbackRepo
	Profiles *data.ProfileRepo
	Roles    *data.RoleRepo
	Stats    *data.StatsRepo
	Sessions *redisadapter.SessionStore
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient) *serviceRepositories {
	return &serviceRepositories{
		Courses:  data.NewCourseRepo(db),
		Feedback: data.NewFeedbackRepo(db),
		Profiles: data.NewProfileRepo(db),
		Roles:    data.NewRoleRepo(db),
		Stats:    data.NewStatsRepo(db),
		Sessions: redisadapter.NewSessionStore(redisClient),
	}
}

// buildFileStore configures the object storage adapter. A missing base URL
// disables profile picture uploads.
//
//nolint:ireturn // nil FileStore is a valid configuration.
func buildFileStore(cfg config.StorageConfig, logger *slog.Logger) (ports.FileStore, error) {
	if cfg.BaseURL == "" {
		logger.Warn("storage base URL not set; profile picture uploads disabled")
		return nil, nil
	}
	store, err := hostedstorage.NewStore(hostedstorage.Config{
		BaseURL: cfg.BaseURL,
		Bucket:  cfg.Bucket,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return store, nil
}

// buildOpsNotifier configures the operator alert webhook. A missing URL
// disables alerts; failures are still logged.
//
//nolint:ireturn // nil OpsNotifier is a valid configuration.
func buildOpsNotifier(cfg config.OpsConfig, logger *slog.Logger) ports.OpsNotifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	client, err := webhook.NewClient(webhook.Config{
		WebhookURL: cfg.WebhookURL,
		Source:     cfg.Source,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		logger.Error("failed to initialise ops webhook, operator alerts disabled", "error", err)
		return nil
	}
	return client
}

// NewServices wires repositories, adapters, and domain services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, fmt.Errorf("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	auth, err := BuildAuthRuntime(ctx, cfg.Auth)
	if err != nil {
		return ServiceContainer{}, err
	}

	repos := buildRepositories(deps.DB, deps.RedisClient)

	files, err := buildFileStore(cfg.Storage, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	ops := buildOpsNotifier(cfg.Ops, logger)

	registry := httpx.NewClientRegistry(httpx.ClientRegistryOptions{
		NewAuthClient:     auth.NewClient,
		Roles:             repos.Roles,
		Profiles:          repos.Profiles,
		Sessions:          repos.Sessions,
		Logger:            logger,
		RoleLookupTimeout: cfg.Resolver.RoleLookupTimeout,
		CookieDomain:      cfg.HTTP.CookieDomain,
	})

	var policy *service.SignupPolicy
	if len(cfg.SignupPolicy.AllowedDomains) > 0 {
		policy = service.NewSignupPolicy(cfg.SignupPolicy.AllowedDomains)
	}

	accounts := service.NewAccountService(service.AccountServiceOptions{
		Profiles:   repos.Profiles,
		Roles:      repos.Roles,
		Feedback:   repos.Feedback,
		Sessions:   repos.Sessions,
		Identities: auth.Identities,
		Ops:        ops,
		Logger:     logger,
	})

	return ServiceContainer{
		Registry:     registry,
		Courses:      service.NewCourseService(repos.Courses),
		Feedback:     service.NewFeedbackService(repos.Feedback, repos.Courses),
		Profiles:     service.NewProfileService(repos.Profiles, files),
		Analytics:    service.NewAnalyticsService(repos.Stats, repos.Profiles, repos.Feedback),
		Accounts:     accounts,
		SignupPolicy: policy,
	}, nil
}
