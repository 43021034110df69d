package session_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/session"
)

func TestContext(t *testing.T) {
	principalID := uuid.New()
	orgID := uuid.New()
	homeID := uuid.New()

	t.Run("Should expose the resolved identity", func(t *testing.T) {
		sc := session.NewContext(principalID, orgID, model.RoleCareProvider, []uuid.UUID{homeID})

		assert.Equal(t, principalID, sc.PrincipalID())
		assert.Equal(t, orgID, sc.OrganizationID())
		assert.Equal(t, model.RoleCareProvider, sc.Role())
		assert.Equal(t, []uuid.UUID{homeID}, sc.HomeIDs())
		assert.False(t, sc.ResolvedAt().IsZero())
	})

	t.Run("Should not share the home slice with callers", func(t *testing.T) {
		homes := []uuid.UUID{homeID}
		sc := session.NewContext(principalID, orgID, model.RoleCareProvider, homes)

		homes[0] = uuid.New()
		assert.Equal(t, homeID, sc.HomeIDs()[0])

		leaked := sc.HomeIDs()
		leaked[0] = uuid.New()
		assert.Equal(t, homeID, sc.HomeIDs()[0])
	})
}

func TestContextAllowsHome(t *testing.T) {
	orgID := uuid.New()
	assignedHome := uuid.New()
	otherHome := uuid.New()

	t.Run("Should narrow care providers to assigned homes", func(t *testing.T) {
		sc := session.NewContext(uuid.New(), orgID, model.RoleCareProvider, []uuid.UUID{assignedHome})

		assert.True(t, sc.AllowsHome(assignedHome))
		assert.False(t, sc.AllowsHome(otherHome))
	})

	t.Run("Should cover every home for non home-scoped roles", func(t *testing.T) {
		for _, role := range []model.Role{model.RoleTenantOwner, model.RoleAdmin, model.RoleSupportOperator} {
			sc := session.NewContext(uuid.New(), orgID, role, nil)
			assert.True(t, sc.AllowsHome(otherHome), "%s", role)
		}
	})

	t.Run("Should deny a care provider with no assignments", func(t *testing.T) {
		sc := session.NewContext(uuid.New(), orgID, model.RoleCareProvider, nil)
		assert.False(t, sc.AllowsHome(assignedHome))
	})
}
