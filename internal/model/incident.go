package model

import (
	"time"

	"github.com/google/uuid"
)

type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "LOW"
	SeverityMedium   IncidentSeverity = "MEDIUM"
	SeverityHigh     IncidentSeverity = "HIGH"
	SeverityCritical IncidentSeverity = "CRITICAL"
)

type IncidentReport struct {
	AutoTimeModel

	ID             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID        `gorm:"type:uuid;index"`
	HomeID         uuid.UUID        `gorm:"type:uuid;index"`
	ResidentID     uuid.UUID        `gorm:"type:uuid;index"`
	Severity       IncidentSeverity `gorm:"type:varchar(20);not null"`
	Description    string           `gorm:"type:text"`
	ReportedBy     uuid.UUID        `gorm:"type:uuid"`
	OccurredAt     time.Time        `gorm:"not null"`
}

func (IncidentReport) TableName() string {
	return "incident_reports"
}

func (i IncidentReport) OrganizationRef() uuid.UUID {
	return i.OrganizationID
}

func (i *IncidentReport) AssignOrganization(id uuid.UUID) {
	i.OrganizationID = id
}

func (i IncidentReport) HomeRef() uuid.UUID {
	return i.HomeID
}
