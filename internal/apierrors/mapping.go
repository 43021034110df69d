package apierrors

import (
	"net/http"

	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/internal/session"
)

// taxonomy maps the internal failure taxonomy onto HTTP. NoTenant gets its
// own code so clients can route the principal to an onboarding flow instead
// of a generic access-denied screen. Cross-tenant reads never reach this
// table as forbidden: the access engine has already converted them to
// not-found.
var taxonomy = []errs.ExposedErrors[*APIError]{
	{
		InternalErrorChain: []error{errs.ErrNoTenant},
		ExposedError: &APIError{
			Code:    NoTenantErr,
			Message: "No active organization membership",
			Status:  http.StatusForbidden,
		},
	},
	{
		InternalErrorChain: []error{errs.ErrForbidden},
		ExposedError: &APIError{
			Code:    ForbiddenErr,
			Message: "Not authorized for this action",
			Status:  http.StatusForbidden,
		},
	},
	{
		InternalErrorChain: []error{errs.ErrNotFound},
		ExposedError: &APIError{
			Code:    ResourceNotFound,
			Message: "The requested resource was not found",
			Status:  http.StatusNotFound,
		},
	},
	{
		InternalErrorChain: []error{errs.ErrValidation},
		ExposedError: &APIError{
			Code:    ValidationErr,
			Message: "Invalid request",
			Status:  http.StatusBadRequest,
		},
	},
	{
		InternalErrorChain: []error{errs.ErrConflict},
		ExposedError: &APIError{
			Code:    ConflictErr,
			Message: "The resource already exists",
			Status:  http.StatusConflict,
		},
	},
	{
		InternalErrorChain: []error{errs.ErrMigrationBlocked},
		ExposedError: &APIError{
			Code:    MigrationBlocked,
			Message: "Tenant migration coverage check failed",
			Status:  http.StatusConflict,
		},
	},
	{
		InternalErrorChain: []error{repo.ErrUniqueConstraint},
		ExposedError: &APIError{
			Code:    ConflictErr,
			Message: "Resource with such ID already exists",
			Status:  http.StatusConflict,
		},
	},
	{
		InternalErrorChain: []error{repo.ErrNotFound},
		ExposedError: &APIError{
			Code:    ResourceNotFound,
			Message: "The requested resource was not found",
			Status:  http.StatusNotFound,
		},
	},
	{
		InternalErrorChain: []error{session.ErrInvalidToken},
		ExposedError: &APIError{
			Code:    UnauthorizedErr,
			Message: "Missing or invalid session token",
			Status:  http.StatusUnauthorized,
		},
	},
}

// highPrio short-circuits mapping: an invalid token is always unauthorized,
// whatever else is wrapped around it.
var highPrio = []errs.ExposedErrors[*APIError]{
	{
		InternalErrorChain: []error{session.ErrInvalidToken},
		ExposedError: &APIError{
			Code:    UnauthorizedErr,
			Message: "Missing or invalid session token",
			Status:  http.StatusUnauthorized,
		},
	},
}

var APIErrorMapper = errs.NewMapper(taxonomy, highPrio)
