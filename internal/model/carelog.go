package model

import (
	"time"

	"github.com/google/uuid"
)

// CareLog is scoped through its resident. OrganizationID here is a
// denormalized copy kept for query performance; the resident's organization
// id is authoritative and any divergence is a data-integrity defect.
type CareLog struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResidentID     uuid.UUID `gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	AuthorID       uuid.UUID `gorm:"type:uuid;not null"`
	Kind           string    `gorm:"type:varchar(50);not null"`
	Note           string    `gorm:"type:text"`
	OccurredAt     time.Time `gorm:"not null"`
}

func (CareLog) TableName() string {
	return "care_logs"
}

func (c CareLog) OrganizationRef() uuid.UUID {
	return c.OrganizationID
}

func (c *CareLog) AssignOrganization(id uuid.UUID) {
	c.OrganizationID = id
}

func (c CareLog) ParentRef() uuid.UUID {
	return c.ResidentID
}

func (c CareLog) NewParent() TenantScoped {
	return &Resident{}
}
