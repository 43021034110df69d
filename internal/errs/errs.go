package errs

import "errors"

// Authorization failure taxonomy. These are expected outcomes of ordinary
// requests, not defects; callers must never retry them automatically.
var (
	// ErrForbidden means the principal is authenticated but not authorized
	// for this tenant, resource or action.
	ErrForbidden = errors.New("forbidden")

	// ErrNoTenant means the principal has zero active memberships and cannot
	// proceed to any tenant-scoped operation.
	ErrNoTenant = errors.New("no active tenant membership")

	// ErrNotFound is also what cross-tenant reads surface at the
	// single-record guard, so existence is never confirmed across tenants.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation covers malformed, user-correctable input.
	ErrValidation = errors.New("validation error")

	// ErrConflict covers uniqueness violations such as a duplicate active
	// membership for the same principal and organization.
	ErrConflict = errors.New("conflict")

	// ErrMigrationBlocked means a migration coverage check failed. Fatal to
	// the migration run, never partially applied.
	ErrMigrationBlocked = errors.New("migration blocked")
)
