//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

const (
	maxProfileNameLen    = 200
	maxProfilePhoneLen   = 32
	maxProfileAddressLen = 500
)

// Profile is the durable record backing a student's account page.
// UserID references the auth backend's identity; there is at most one profile
// per identity.
type Profile struct {
	ID                string     `json:"id"                            db:"id"`
	UserID            string     `json:"user_id"                       db:"user_id"`
	Name              string     `json:"name"                          db:"name"`
	Email             string     `json:"email"                         db:"email"`
	Phone             *string    `json:"phone,omitempty"               db:"phone"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"       db:"date_of_birth"`
	Address           *string    `json:"address,omitempty"             db:"address"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty" db:"profile_picture_url"`
	IsBlocked         bool       `json:"is_blocked"                    db:"is_blocked"`
	CreatedAt         time.Time  `json:"created_at"                    db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"                    db:"updated_at"`
}

// UpsertProfileRequest carries the caller-editable profile fields.
type UpsertProfileRequest struct {
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     *string    `json:"address,omitempty"`
}

// Validate checks field limits for profile writes.
func (r *UpsertProfileRequest) Validate() error {
	if utf8.RuneCountInString(r.Name) > maxProfileNameLen {
		return apperrors.ValidationField("name", "name is too long")
	}
	if r.Phone != nil && utf8.RuneCountInString(strings.TrimSpace(*r.Phone)) > maxProfilePhoneLen {
		return apperrors.ValidationField("phone", "phone number is too long")
	}
	if r.Address != nil && utf8.RuneCountInString(*r.Address) > maxProfileAddressLen {
		return apperrors.ValidationField("address", "address is too long")
	}
	return nil
}

// StudentListOptions controls filtering for the admin student roster.
type StudentListOptions struct {
	Q       *string // substring match on name or email (ILIKE)
	Blocked *bool   // exact match
	Limit   int
	Offset  int
}
