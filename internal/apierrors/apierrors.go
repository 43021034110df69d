package apierrors

import (
	"net/http"
)

const (
	InternalServerErr = "INTERNAL_SERVER_ERROR"
	ForbiddenErr      = "FORBIDDEN"
	NoTenantErr       = "NO_TENANT"
	ResourceNotFound  = "RESOURCE_NOT_FOUND"
	ValidationErr     = "VALIDATION_ERROR"
	ConflictErr       = "CONFLICT"
	MigrationBlocked  = "MIGRATION_BLOCKED"
	UnauthorizedErr   = "UNAUTHORIZED"
)

// APIError is the wire shape of every error response.
type APIError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Context *map[string]any `json:"context,omitempty"`
}

func (e *APIError) SetContext(context *map[string]any) {
	e.Context = context
}

func (e *APIError) DefaultError() *APIError {
	return InternalServerErrorMessage()
}

func InternalServerErrorMessage() *APIError {
	return &APIError{
		Code:    InternalServerErr,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}
}

func UnauthorizedErrorMessage() *APIError {
	return &APIError{
		Code:    UnauthorizedErr,
		Message: "Missing or invalid session token",
		Status:  http.StatusUnauthorized,
	}
}
