package model

import (
	"time"

	"github.com/google/uuid"
)

// Membership binds a principal to an organization with a role. At most one
// active membership may exist per (principal, organization) pair; the partial
// unique index in the schema migration enforces it. Rows are deactivated,
// never deleted, to preserve audit attribution.
type Membership struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index"`
	Role           Role      `gorm:"type:varchar(50);not null"`
	InvitedBy      uuid.UUID `gorm:"type:uuid"`
	JoinedAt       time.Time `gorm:"not null"`
	Active         bool      `gorm:"not null;default:true"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m Membership) OrganizationRef() uuid.UUID {
	return m.OrganizationID
}
