package model

import (
	"github.com/google/uuid"
)

// Organization is the tenant root. Organizations are never hard-deleted;
// historical audit trails must stay attributable, so removal is a
// soft-deactivate.
type Organization struct {
	AutoTimeModel

	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name   string    `gorm:"type:varchar(255);not null"`
	Active bool      `gorm:"not null;default:true"`
}

func (Organization) TableName() string {
	return "organizations"
}

const MaxOrganizationNameLength = 255
