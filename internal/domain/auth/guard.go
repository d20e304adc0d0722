package auth

// Decision is the outcome of authorizing a view against resolver state.
type Decision int

const (
	// DecisionPending means resolution is still in flight; callers must show a
	// loading placeholder, not the view and not a redirect.
	DecisionPending Decision = iota
	// DecisionDenyUnauthenticated means no identity is present; callers must
	// send the user to the sign-in entry point.
	DecisionDenyUnauthenticated
	// DecisionDenyForbidden means the identity lacks the required role; callers
	// must render an access-denied view without navigating away.
	DecisionDenyForbidden
	// DecisionAllow permits rendering the requested view.
	DecisionAllow
)

// String implements fmt.Stringer for logging and test output.
func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionDenyUnauthenticated:
		return "deny_unauthenticated"
	case DecisionDenyForbidden:
		return "deny_forbidden"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Authorize decides whether a view with the given role requirement may render
// under the given resolver state. Pass RoleNone as required when the view only
// needs an authenticated user.
//
// The function is pure and total: every combination of state and requirement
// maps to exactly one Decision. While the resolver is still working, the
// answer is always DecisionPending; a provisional role is never used to allow
// or forbid.
func Authorize(state ResolverState, required Role) Decision {
	if state.Resolving {
		return DecisionPending
	}
	if state.Identity == nil {
		return DecisionDenyUnauthenticated
	}
	if required != RoleNone && state.Role != required {
		return DecisionDenyForbidden
	}
	return DecisionAllow
}
