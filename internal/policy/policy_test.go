package policy_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/policy"
	"github.com/careloop/careloop/internal/session"
)

var allActions = []policy.Action{
	policy.ActionRead,
	policy.ActionCreate,
	policy.ActionUpdate,
	policy.ActionDelete,
	policy.ActionInvite,
	policy.ActionDeactivate,
	policy.ActionAssignHome,
}

var phiKinds = []policy.ResourceKind{
	policy.KindResident,
	policy.KindCareLog,
	policy.KindDocument,
	policy.KindIncidentReport,
}

func newSessionContext(role model.Role) *session.Context {
	return session.NewContext(uuid.New(), uuid.New(), role, nil)
}

func TestDecide(t *testing.T) {
	t.Run("Should fail on nil session context", func(t *testing.T) {
		_, err := policy.Decide(nil, policy.ActionRead, policy.KindHome)
		assert.ErrorIs(t, err, policy.ErrNilSessionContext)
	})

	t.Run("Should allow tenant owner everything", func(t *testing.T) {
		sc := newSessionContext(model.RoleTenantOwner)

		for _, action := range allActions {
			decision, err := policy.Decide(sc, action, policy.KindOrganization)
			assert.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
	})

	t.Run("Should deny admin deleting the organization", func(t *testing.T) {
		sc := newSessionContext(model.RoleAdmin)

		decision, err := policy.Decide(sc, policy.ActionDelete, policy.KindOrganization)
		assert.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, policy.ReasonRoleDenied, decision.Reason)
	})

	t.Run("Should allow admin managing memberships", func(t *testing.T) {
		sc := newSessionContext(model.RoleAdmin)

		decision, err := policy.Decide(sc, policy.ActionInvite, policy.KindMembership)
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}

func TestDecideCareProvider(t *testing.T) {
	sc := newSessionContext(model.RoleCareProvider)

	t.Run("Should allow reading residents and homes", func(t *testing.T) {
		for _, kind := range []policy.ResourceKind{policy.KindHome, policy.KindResident} {
			decision, err := policy.Decide(sc, policy.ActionRead, kind)
			assert.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
	})

	t.Run("Should allow writing care records", func(t *testing.T) {
		for _, kind := range []policy.ResourceKind{policy.KindCareLog, policy.KindDocument, policy.KindIncidentReport} {
			for _, action := range []policy.Action{policy.ActionRead, policy.ActionCreate, policy.ActionUpdate} {
				decision, err := policy.Decide(sc, action, kind)
				assert.NoError(t, err)
				assert.True(t, decision.Allowed, "%s %s", action, kind)
			}
		}
	})

	t.Run("Should deny everything else", func(t *testing.T) {
		tests := []struct {
			action policy.Action
			kind   policy.ResourceKind
		}{
			{policy.ActionUpdate, policy.KindResident},
			{policy.ActionDelete, policy.KindCareLog},
			{policy.ActionInvite, policy.KindMembership},
			{policy.ActionAssignHome, policy.KindHomeAssignment},
			{policy.ActionRead, policy.KindOrganization},
		}
		for _, tc := range tests {
			decision, err := policy.Decide(sc, tc.action, tc.kind)
			assert.NoError(t, err)
			assert.False(t, decision.Allowed, "%s %s", tc.action, tc.kind)
		}
	})
}

// The PHI rule must hold over the entire action set: a read-only role with
// PHI excluded sees no protected record through any operation.
func TestDecideSupportOperatorPHI(t *testing.T) {
	sc := newSessionContext(model.RoleSupportOperator)

	t.Run("Should deny every action on PHI kinds", func(t *testing.T) {
		for _, kind := range phiKinds {
			for _, action := range allActions {
				decision, err := policy.Decide(sc, action, kind)
				assert.NoError(t, err)
				assert.False(t, decision.Allowed, "%s %s", action, kind)
			}
		}
	})

	t.Run("Should report PHI as the denial reason on reads", func(t *testing.T) {
		decision, err := policy.Decide(sc, policy.ActionRead, policy.KindResident)
		assert.NoError(t, err)
		assert.Equal(t, policy.ReasonPHIDenied, decision.Reason)
	})

	t.Run("Should allow reading non-PHI kinds", func(t *testing.T) {
		for _, kind := range []policy.ResourceKind{policy.KindOrganization, policy.KindMembership, policy.KindHome, policy.KindHomeAssignment} {
			decision, err := policy.Decide(sc, policy.ActionRead, kind)
			assert.NoError(t, err)
			assert.True(t, decision.Allowed, "%s", kind)
		}
	})

	t.Run("Should deny writes on non-PHI kinds", func(t *testing.T) {
		decision, err := policy.Decide(sc, policy.ActionCreate, policy.KindHome)
		assert.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, policy.ReasonRoleDenied, decision.Reason)
	})
}

func TestEvaluate(t *testing.T) {
	t.Run("Should unwrap to forbidden on denial", func(t *testing.T) {
		sc := newSessionContext(model.RoleSupportOperator)

		err := policy.Evaluate(sc, policy.ActionRead, policy.KindResident)
		assert.ErrorIs(t, err, errs.ErrForbidden)
		assert.Contains(t, err.Error(), string(policy.ReasonPHIDenied))
	})

	t.Run("Should return nil on allow", func(t *testing.T) {
		sc := newSessionContext(model.RoleAdmin)

		err := policy.Evaluate(sc, policy.ActionRead, policy.KindResident)
		assert.NoError(t, err)
	})

	t.Run("Should not mark contract violations forbidden", func(t *testing.T) {
		err := policy.Evaluate(nil, policy.ActionRead, policy.KindResident)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, errs.ErrForbidden)
	})
}

func TestIsPHI(t *testing.T) {
	for _, kind := range phiKinds {
		assert.True(t, policy.IsPHI(kind))
	}

	assert.False(t, policy.IsPHI(policy.KindOrganization))
	assert.False(t, policy.IsPHI(policy.KindHome))
}
