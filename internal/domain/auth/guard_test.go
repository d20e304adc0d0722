package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func studentState() ResolverState {
	id := Identity{ID: "user-1", Email: "student@example.com"}
	return ResolverState{Identity: &id, Role: RoleStudent}
}

func TestAuthorize_Totality(t *testing.T) {
	identity := Identity{ID: "user-1", Email: "user@example.com"}

	states := map[string]ResolverState{
		"resolving_with_identity": {Identity: &identity, Resolving: true},
		"resolving_no_identity":   {Resolving: true},
		"settled_with_identity":   {Identity: &identity, Role: RoleStudent},
		"settled_no_identity":     Unauthenticated(),
	}
	requirements := []Role{RoleNone, RoleStudent, RoleAdmin}

	for name, state := range states {
		for _, required := range requirements {
			got := Authorize(state, required)
			// Every input maps to exactly one of the four decisions.
			assert.Contains(t,
				[]Decision{DecisionPending, DecisionDenyUnauthenticated, DecisionDenyForbidden, DecisionAllow},
				got, "state=%s required=%q", name, required)

			if state.Resolving {
				assert.Equal(t, DecisionPending, got, "state=%s required=%q", name, required)
			}
		}
	}
}

func TestAuthorize_PendingIsOpaque(t *testing.T) {
	// Even if a provisional role is visible, a resolving state never allows
	// and never forbids.
	identity := Identity{ID: "user-1"}
	state := ResolverState{Identity: &identity, Role: RoleAdmin, Resolving: true}

	assert.Equal(t, DecisionPending, Authorize(state, RoleAdmin))
	assert.Equal(t, DecisionPending, Authorize(state, RoleStudent))
	assert.Equal(t, DecisionPending, Authorize(state, RoleNone))
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	assert.Equal(t, DecisionDenyUnauthenticated, Authorize(Unauthenticated(), RoleNone))
	assert.Equal(t, DecisionDenyUnauthenticated, Authorize(Unauthenticated(), RoleAdmin))
}

func TestAuthorize_RoleMismatchIsForbidden(t *testing.T) {
	assert.Equal(t, DecisionDenyForbidden, Authorize(studentState(), RoleAdmin))
}

func TestAuthorize_Allow(t *testing.T) {
	assert.Equal(t, DecisionAllow, Authorize(studentState(), RoleStudent))
	assert.Equal(t, DecisionAllow, Authorize(studentState(), RoleNone))

	admin := studentState()
	admin.Role = RoleAdmin
	assert.Equal(t, DecisionAllow, Authorize(admin, RoleAdmin))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "pending", DecisionPending.String())
	assert.Equal(t, "deny_unauthenticated", DecisionDenyUnauthenticated.String())
	assert.Equal(t, "deny_forbidden", DecisionDenyForbidden.String())
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
