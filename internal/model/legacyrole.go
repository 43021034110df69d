package model

import (
	"time"

	"github.com/google/uuid"
)

// LegacyRole is a pre-tenancy global role assignment row. The migration
// derives memberships from these and the LegacyRolesRetired step removes
// them; nothing outside the migration coordinator reads this table.
type LegacyRole struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;not null"`
	Role        string    `gorm:"type:varchar(100);not null"`
	GrantedAt   time.Time `gorm:"not null"`
}

func (LegacyRole) TableName() string {
	return "legacy_roles"
}

// LegacyRoleMapping translates the old free-text global roles into
// membership roles during the relational backfill.
var LegacyRoleMapping = map[string]Role{
	"Owner":         RoleTenantOwner,
	"Administrator": RoleAdmin,
	"Caregiver":     RoleCareProvider,
	"ITSupport":     RoleSupportOperator,
}
