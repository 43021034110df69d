package write

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/careloop/careloop/internal/apierrors"
	"github.com/careloop/careloop/internal/log"
)

// JSONResponse writes a JSON body with the given status.
func JSONResponse(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Error(ctx, "failed to encode response body", err)
	}
}

// ErrorResponse writes an APIError with its embedded status.
func ErrorResponse(ctx context.Context, w http.ResponseWriter, apiErr *apierrors.APIError) {
	JSONResponse(ctx, w, apiErr.Status, apiErr)
}
