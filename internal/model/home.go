package model

import (
	"time"

	"github.com/google/uuid"
)

// Home is a care location within an organization.
type Home struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Address        string    `gorm:"type:text"`
	Active         bool      `gorm:"not null;default:true"`
}

func (Home) TableName() string {
	return "homes"
}

func (h Home) OrganizationRef() uuid.UUID {
	return h.OrganizationID
}

func (h *Home) AssignOrganization(id uuid.UUID) {
	h.OrganizationID = id
}

// HomeAssignment scopes a caregiver to a home within the same organization.
// Cross-tenant assignments are rejected at write time.
type HomeAssignment struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID    uuid.UUID `gorm:"type:uuid;not null;index"`
	HomeID         uuid.UUID `gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	AssignedBy     uuid.UUID `gorm:"type:uuid"`
	AssignedAt     time.Time `gorm:"not null"`
	Active         bool      `gorm:"not null;default:true"`
}

func (HomeAssignment) TableName() string {
	return "home_assignments"
}

func (a HomeAssignment) OrganizationRef() uuid.UUID {
	return a.OrganizationID
}

func (a *HomeAssignment) AssignOrganization(id uuid.UUID) {
	a.OrganizationID = id
}

func (a HomeAssignment) HomeRef() uuid.UUID {
	return a.HomeID
}

// The home is the assignment's authoritative parent: an assignment can never
// point at a home in another organization.
func (a HomeAssignment) ParentRef() uuid.UUID {
	return a.HomeID
}

func (a HomeAssignment) NewParent() TenantScoped {
	return &Home{}
}
