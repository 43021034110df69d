package model

import (
	"github.com/google/uuid"
)

// Document references an uploaded file in the blob store. BlobPath must stay
// consistent with the object's physical location; the migration updates both
// in the same logical step.
type Document struct {
	AutoTimeModel

	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	ResidentID     uuid.UUID `gorm:"type:uuid;index"`
	BlobPath       string    `gorm:"type:varchar(1024);not null"`
	ContentType    string    `gorm:"type:varchar(255)"`
	FileName       string    `gorm:"type:varchar(512)"`
	UploadedBy     uuid.UUID `gorm:"type:uuid"`
}

func (Document) TableName() string {
	return "documents"
}

func (d Document) OrganizationRef() uuid.UUID {
	return d.OrganizationID
}

func (d *Document) AssignOrganization(id uuid.UUID) {
	d.OrganizationID = id
}
