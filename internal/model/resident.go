package model

import (
	"time"

	"github.com/google/uuid"
)

// Resident is a tenant-scoped person under care. Resident records carry PHI.
type Resident struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	HomeID         uuid.UUID `gorm:"type:uuid;index"`
	GivenName      string    `gorm:"type:varchar(255);not null"`
	FamilyName     string    `gorm:"type:varchar(255);not null"`
	DateOfBirth    time.Time
	Active         bool `gorm:"not null;default:true"`
}

func (Resident) TableName() string {
	return "residents"
}

func (r Resident) OrganizationRef() uuid.UUID {
	return r.OrganizationID
}

func (r *Resident) AssignOrganization(id uuid.UUID) {
	r.OrganizationID = id
}

func (r Resident) HomeRef() uuid.UUID {
	return r.HomeID
}
