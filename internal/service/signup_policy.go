package service

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// SignupPolicy optionally restricts registration to an allow-list of email
// domains. Domains are compared on their registrable form, so a policy entry
// of "university.edu" admits "mail.university.edu" addresses too.
type SignupPolicy struct {
	allowed map[string]bool
}

// NewSignupPolicy builds a policy from configured domains. An empty list
// admits everyone.
func NewSignupPolicy(domains []string) *SignupPolicy {
	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if normalized, err := publicsuffix.EffectiveTLDPlusOne(d); err == nil {
			d = normalized
		}
		allowed[d] = true
	}
	return &SignupPolicy{allowed: allowed}
}

// Check returns a validation error when the email's domain is outside the
// allow-list.
func (p *SignupPolicy) Check(email string) error {
	if len(p.allowed) == 0 {
		return nil
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return apperrors.ValidationField("email", "invalid email address")
	}
	host := strings.ToLower(email[at+1:])

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return apperrors.ValidationField("email", "invalid email domain")
	}
	if !p.allowed[registrable] {
		return apperrors.ValidationField("email", "email domain is not allowed to register")
	}
	return nil
}
