package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

func TestSignupPolicy_EmptyListAdmitsEveryone(t *testing.T) {
	policy := NewSignupPolicy(nil)
	assert.NoError(t, policy.Check("anyone@anywhere.io"))
}

func TestSignupPolicy_Check(t *testing.T) {
	policy := NewSignupPolicy([]string{"University.EDU", " example.org "})

	tests := []struct {
		name    string
		email   string
		allowed bool
	}{
		{name: "exact domain", email: "ada@university.edu", allowed: true},
		{name: "subdomain of allowed domain", email: "ada@mail.university.edu", allowed: true},
		{name: "case insensitive", email: "ada@UNIVERSITY.edu", allowed: true},
		{name: "second allowed domain", email: "ada@example.org", allowed: true},
		{name: "outside domain", email: "ada@gmail.com", allowed: false},
		{name: "lookalike suffix", email: "ada@notuniversity.edu", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(tt.email)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, "email", apperrors.GetField(err))
		})
	}
}

func TestSignupPolicy_RejectsMalformedEmail(t *testing.T) {
	policy := NewSignupPolicy([]string{"university.edu"})

	for _, email := range []string{"no-at-sign", "trailing@"} {
		err := policy.Check(email)
		require.Error(t, err, email)
		assert.True(t, apperrors.IsValidation(err))
	}
}
