package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/api/write"
	"github.com/careloop/careloop/internal/apierrors"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/session"
	careloopcontext "github.com/careloop/careloop/utils/context"
)

// SessionService resolves session contexts for incoming requests. Every
// resolution goes back to the directory, so handler code never caches a
// membership decision across requests.
type SessionService interface {
	Resolve(ctx context.Context, principalID, orgID uuid.UUID) (*session.Context, error)
	ResolveLogin(ctx context.Context, principalID uuid.UUID) (*session.LoginResult, error)
	Switch(ctx context.Context, principalID, orgID uuid.UUID) (*session.Context, string, error)
}

// sessionFrom rebuilds the session context from the verified token claims on
// the request context. The claims only name the selection; the membership is
// re-validated on every call.
func sessionFrom(r *http.Request, sessions SessionService) (*session.Context, error) {
	ctx := r.Context()

	principalID, err := careloopcontext.ExtractPrincipal(ctx)
	if err != nil {
		return nil, errs.Wrap(session.ErrInvalidToken, err)
	}

	orgID, err := careloopcontext.ExtractClaimedOrg(ctx)
	if err != nil {
		return nil, errs.Wrap(session.ErrInvalidToken, err)
	}

	return sessions.Resolve(ctx, principalID, orgID)
}

func decodeJSON(r *http.Request, dest any) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil {
		return errs.Wrap(errs.ErrValidation, err)
	}

	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.ErrValidation, err)
	}

	return id, nil
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	write.ErrorResponse(ctx, w, apierrors.APIErrorMapper.Transform(ctx, err))
}
