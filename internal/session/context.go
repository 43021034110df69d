package session

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/model"
)

// Context is the resolved session context: one principal acting in one
// organization under one role. Fields are unexported so a context cannot be
// altered after resolution; a different organization requires a fresh
// resolution.
type Context struct {
	principalID    uuid.UUID
	organizationID uuid.UUID
	role           model.Role
	homeIDs        []uuid.UUID
	resolvedAt     time.Time
}

func NewContext(principalID, organizationID uuid.UUID, role model.Role, homeIDs []uuid.UUID) *Context {
	return &Context{
		principalID:    principalID,
		organizationID: organizationID,
		role:           role,
		homeIDs:        slices.Clone(homeIDs),
		resolvedAt:     time.Now().UTC(),
	}
}

func (c *Context) PrincipalID() uuid.UUID {
	return c.principalID
}

func (c *Context) OrganizationID() uuid.UUID {
	return c.organizationID
}

func (c *Context) Role() model.Role {
	return c.role
}

// HomeIDs returns the homes the principal is assigned to. Only home scoped
// roles carry assignments.
func (c *Context) HomeIDs() []uuid.UUID {
	return slices.Clone(c.homeIDs)
}

// AllowsHome reports whether the context covers the given home. Roles that
// are not home scoped cover every home in the organization.
func (c *Context) AllowsHome(homeID uuid.UUID) bool {
	if !c.role.IsHomeScoped() {
		return true
	}

	return slices.Contains(c.homeIDs, homeID)
}

func (c *Context) ResolvedAt() time.Time {
	return c.resolvedAt
}
