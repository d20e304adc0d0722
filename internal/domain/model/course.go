//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

const (
	maxCourseNameLen = 200
	maxCourseCodeLen = 32
	maxCourseDescLen = 2000
)

// Course represents a course that students can leave feedback on.
type Course struct {
	ID          string    `json:"id"                    db:"id"`
	Name        string    `json:"name"                  db:"name"`
	Code        string    `json:"code"                  db:"code"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"is_active"             db:"is_active"`
	CreatedAt   time.Time `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"            db:"updated_at"`
}

// CreateCourseRequest represents parameters to create a Course.
type CreateCourseRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Validate checks field presence and limits for course creation.
func (r *CreateCourseRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperrors.ValidationField("name", "course name is required")
	}
	if utf8.RuneCountInString(r.Name) > maxCourseNameLen {
		return apperrors.ValidationField("name", "course name is too long")
	}
	if strings.TrimSpace(r.Code) == "" {
		return apperrors.ValidationField("code", "course code is required")
	}
	if utf8.RuneCountInString(r.Code) > maxCourseCodeLen {
		return apperrors.ValidationField("code", "course code is too long")
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > maxCourseDescLen {
		return apperrors.ValidationField("description", "course description is too long")
	}
	return nil
}

// UpdateCourseRequest represents parameters to update a Course.
// Nil fields are left unchanged.
type UpdateCourseRequest struct {
	Name        *string `json:"name,omitempty"`
	Code        *string `json:"code,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Validate checks field limits for course updates.
func (r *UpdateCourseRequest) Validate() error {
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return apperrors.ValidationField("name", "course name cannot be empty")
		}
		if utf8.RuneCountInString(*r.Name) > maxCourseNameLen {
			return apperrors.ValidationField("name", "course name is too long")
		}
	}
	if r.Code != nil {
		if strings.TrimSpace(*r.Code) == "" {
			return apperrors.ValidationField("code", "course code cannot be empty")
		}
		if utf8.RuneCountInString(*r.Code) > maxCourseCodeLen {
			return apperrors.ValidationField("code", "course code is too long")
		}
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > maxCourseDescLen {
		return apperrors.ValidationField("description", "course description is too long")
	}
	return nil
}

// CourseListOptions controls filtering for course listings.
type CourseListOptions struct {
	// ActiveOnly hides deactivated courses (student-facing listings).
	ActiveOnly bool
}
