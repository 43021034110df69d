package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("document record not found")
	ErrPutRecord      = errors.New("failed to store document record")
	ErrTagRecord      = errors.New("failed to tag document record")
	ErrListRecords    = errors.New("failed to list document records")
)

// Record mirrors a care document's metadata in the document store. Records
// written before tenant isolation carry a nil OrganizationID until the
// migration coordinator backfills them.
type Record struct {
	ID             uuid.UUID `json:"id"`
	ResidentID     uuid.UUID `json:"residentId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	FileName       string    `json:"fileName"`
	ContentType    string    `json:"contentType"`
	BlobPath       string    `json:"blobPath"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Tagged reports whether the record already carries its tenant tag.
func (r Record) Tagged() bool {
	return r.OrganizationID != uuid.Nil
}

// Store is the document metadata store. Tenant tags partition records so that
// per tenant listing never scans another tenant's documents.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	TagTenant(ctx context.Context, id, orgID uuid.UUID) error
	Untag(ctx context.Context, id uuid.UUID) error
	ListByTenant(ctx context.Context, orgID uuid.UUID) ([]Record, error)
	ListUntagged(ctx context.Context, limit int64) ([]Record, error)
	CountByTenant(ctx context.Context, orgID uuid.UUID) (int64, error)
	CountUntagged(ctx context.Context) (int64, error)
}
