package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/domain/model"
	apperrors "github.com/courselens/courselens-api/internal/errors"
	"github.com/courselens/courselens-api/internal/ports"
)

// allowed picture extensions, lowercased.
var pictureExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ProfileService manages student profile records and picture uploads.
type ProfileService struct {
	profiles ports.ProfileDirectory
	files    ports.FileStore
}

// NewProfileService constructs a ProfileService.
func NewProfileService(profiles ports.ProfileDirectory, files ports.FileStore) *ProfileService {
	return &ProfileService{profiles: profiles, files: files}
}

// GetOrCreate returns the identity's profile, creating it on first access.
// Sign-up provisioning is best effort, so a missing row here is expected.
func (s *ProfileService) GetOrCreate(ctx context.Context, identity domainauth.Identity) (model.Profile, error) {
	profile, err := s.profiles.GetByUser(ctx, identity.ID)
	if err == nil {
		return profile, nil
	}
	if !apperrors.IsNotFound(err) {
		return model.Profile{}, err
	}
	profile, err = s.profiles.Create(ctx, identity.ID, identity.DisplayName, identity.Email)
	if err != nil {
		// Lost a create race with a concurrent request for the same user.
		if apperrors.IsConflict(err) {
			return s.profiles.GetByUser(ctx, identity.ID)
		}
		return model.Profile{}, err
	}
	return profile, nil
}

// Update applies caller-editable fields to the identity's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, in model.UpsertProfileRequest) (model.Profile, error) {
	if err := in.Validate(); err != nil {
		return model.Profile{}, err
	}
	return s.profiles.Update(ctx, userID, in)
}

// UploadPicture stores a profile picture and records its public URL. The key
// is stable per user, so a new upload replaces the old picture.
func (s *ProfileService) UploadPicture(ctx context.Context, userID, filename, contentType string, body io.Reader) (model.Profile, error) {
	if s.files == nil {
		return model.Profile{}, apperrors.Internal("file storage is not configured")
	}
	ext := strings.ToLower(path.Ext(filename))
	if !pictureExtensions[ext] {
		return model.Profile{}, apperrors.ValidationField("file", "unsupported image type")
	}

	key := fmt.Sprintf("profile-pictures/%s/avatar%s", userID, ext)
	url, err := s.files.Upload(ctx, key, contentType, body)
	if err != nil {
		return model.Profile{}, fmt.Errorf("upload profile picture: %w", err)
	}

	return s.profiles.SetPictureURL(ctx, userID, url)
}
