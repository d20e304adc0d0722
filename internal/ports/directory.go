package ports

import (
	"context"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/domain/model"
)

// RoleDirectory is the durable source of role assignments, consulted when a
// session carries no usable role hint.
type RoleDirectory interface {
	// LookupRole returns the stored role for an identity. found is false
	// when no assignment exists, which is not an error.
	LookupRole(ctx context.Context, userID string) (role domainauth.Role, found bool, err error)

	// UpsertRole records a role assignment, replacing any existing one.
	UpsertRole(ctx context.Context, userID string, role domainauth.Role) error

	// DeleteRole removes an identity's role assignment. Missing assignments
	// are not an error.
	DeleteRole(ctx context.Context, userID string) error
}

// ProfileDirectory manages the durable profile records backing account pages
// and the admin roster.
type ProfileDirectory interface {
	// GetByUser returns the profile for an identity, or a not-found error.
	GetByUser(ctx context.Context, userID string) (model.Profile, error)

	// Create inserts a fresh profile for an identity.
	Create(ctx context.Context, userID, name, email string) (model.Profile, error)

	// Update applies caller-editable fields to an existing profile.
	Update(ctx context.Context, userID string, in model.UpsertProfileRequest) (model.Profile, error)

	// SetPictureURL records the public URL of an uploaded profile picture.
	SetPictureURL(ctx context.Context, userID, url string) (model.Profile, error)

	// SetBlocked flips the moderation flag for an identity.
	SetBlocked(ctx context.Context, userID string, blocked bool) error

	// List returns profiles matching the roster filters.
	List(ctx context.Context, opts model.StudentListOptions) ([]model.Profile, error)

	// Delete removes an identity's profile. Missing profiles are not an error.
	Delete(ctx context.Context, userID string) error
}
