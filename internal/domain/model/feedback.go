//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

const (
	// MinRating and MaxRating bound the star scale.
	MinRating = 1
	MaxRating = 5

	maxFeedbackMessageLen = 4000
)

// Feedback is one student's rating and comment for one course.
type Feedback struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	CourseID  string    `json:"course_id"  db:"course_id"`
	Rating    int       `json:"rating"     db:"rating"`
	Message   string    `json:"message"    db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FeedbackWithCourse joins feedback with the course it targets, for
// student-facing listings.
type FeedbackWithCourse struct {
	Feedback
	CourseName string `json:"course_name" db:"course_name"`
	CourseCode string `json:"course_code" db:"course_code"`
}

// FeedbackDetail joins feedback with both course and author details, for the
// admin dashboard.
type FeedbackDetail struct {
	Feedback
	CourseName        string  `json:"course_name"                   db:"course_name"`
	CourseCode        string  `json:"course_code"                   db:"course_code"`
	UserName          string  `json:"user_name"                     db:"user_name"`
	UserEmail         string  `json:"user_email"                    db:"user_email"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty" db:"profile_picture_url"`
}

// CreateFeedbackRequest represents parameters to submit feedback.
type CreateFeedbackRequest struct {
	CourseID string `json:"course_id"`
	Rating   int    `json:"rating"`
	Message  string `json:"message"`
}

// Validate checks rating bounds and field presence.
func (r *CreateFeedbackRequest) Validate() error {
	if strings.TrimSpace(r.CourseID) == "" {
		return apperrors.ValidationField("course_id", "course is required")
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return apperrors.ValidationField("rating", "rating must be between 1 and 5")
	}
	if strings.TrimSpace(r.Message) == "" {
		return apperrors.ValidationField("message", "message is required")
	}
	if utf8.RuneCountInString(r.Message) > maxFeedbackMessageLen {
		return apperrors.ValidationField("message", "message is too long")
	}
	return nil
}

// UpdateFeedbackRequest represents parameters to edit existing feedback.
type UpdateFeedbackRequest struct {
	CourseID *string `json:"course_id,omitempty"`
	Rating   *int    `json:"rating,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// Validate checks rating bounds and field limits for feedback edits.
func (r *UpdateFeedbackRequest) Validate() error {
	if r.CourseID != nil && strings.TrimSpace(*r.CourseID) == "" {
		return apperrors.ValidationField("course_id", "course cannot be empty")
	}
	if r.Rating != nil && (*r.Rating < MinRating || *r.Rating > MaxRating) {
		return apperrors.ValidationField("rating", "rating must be between 1 and 5")
	}
	if r.Message != nil {
		if strings.TrimSpace(*r.Message) == "" {
			return apperrors.ValidationField("message", "message cannot be empty")
		}
		if utf8.RuneCountInString(*r.Message) > maxFeedbackMessageLen {
			return apperrors.ValidationField("message", "message is too long")
		}
	}
	return nil
}

// FeedbackListOptions controls filtering for admin feedback listings.
type FeedbackListOptions struct {
	CourseID *string // exact match
	Rating   *int    // exact match
	Q        *string // substring match on message (ILIKE)
	Limit    int
	Offset   int
}
