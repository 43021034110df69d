package model

import (
	"errors"
	"fmt"
)

// Role is the closed set of membership roles. Unrecognized values are
// rejected at the boundary, never propagated into policy checks.
type Role string

const (
	RoleTenantOwner     Role = "TENANT_OWNER"
	RoleAdmin           Role = "ADMIN"
	RoleCareProvider    Role = "CARE_PROVIDER"
	RoleSupportOperator Role = "SUPPORT_OPERATOR"
)

var ErrUnknownRole = errors.New("unknown role")

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTenantOwner, RoleAdmin, RoleCareProvider, RoleSupportOperator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// HasPHIAccess is false only for the IT support role; every other role sees
// protected health information within its scope.
func (r Role) HasPHIAccess() bool {
	return r != RoleSupportOperator
}

// IsHomeScoped reports whether the role's visibility is narrowed to
// explicitly assigned homes within the tenant.
func (r Role) IsHomeScoped() bool {
	return r == RoleCareProvider
}

func (r Role) String() string {
	return string(r)
}
