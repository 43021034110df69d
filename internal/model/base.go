package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AutoTimeModel struct {
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate ensures timestamps are set before creating a record
func (b *AutoTimeModel) BeforeCreate(_ *gorm.DB) error {
	now := time.Now().UTC()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}

	b.UpdatedAt = now

	return nil
}

// BeforeUpdate ensures UpdatedAt is set before updating a record
func (b *AutoTimeModel) BeforeUpdate(_ *gorm.DB) error {
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// TenantScoped is implemented by every resource that must never be visible
// across organization boundaries. A zero OrganizationRef means the row has
// not been tagged yet, which is only legal before the migration tightens
// constraints.
type TenantScoped interface {
	OrganizationRef() uuid.UUID
}

// TenantAssignable is implemented by tenant scoped resources whose
// organization can be stamped at creation time.
type TenantAssignable interface {
	TenantScoped
	AssignOrganization(uuid.UUID)
}

// HomeScoped is implemented by resources subject to the CareProvider home
// overlay on top of the tenant filter.
type HomeScoped interface {
	HomeRef() uuid.UUID
}

// ParentScoped is implemented by resources that inherit their tenant through
// exactly one level of indirection. The parent's organization id is
// authoritative; any denormalized copy on the child is a read optimization.
type ParentScoped interface {
	ParentRef() uuid.UUID
	NewParent() TenantScoped
}
