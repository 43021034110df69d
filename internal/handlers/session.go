package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/api/write"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/session"
	careloopcontext "github.com/careloop/careloop/utils/context"
)

var (
	errMissingPrincipal    = errors.New("principal id must be specified")
	errMissingOrganization = errors.New("organization id must be specified")
)

// SessionHandler serves login resolution and organization switching. The
// gateway in front of this service authenticates the principal; login
// exchanges the authenticated principal id for a session token.
type SessionHandler struct {
	sessions SessionService
}

func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	PrincipalID uuid.UUID `json:"principalId"`
}

type sessionResponse struct {
	Token          string     `json:"token"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Role           model.Role `json:"role"`
}

type membershipChoice struct {
	OrganizationID uuid.UUID  `json:"organizationId"`
	Role           model.Role `json:"role"`
}

type loginChoicesResponse struct {
	Choices []membershipChoice `json:"choices"`
}

// Login resolves the post-login session. A single membership yields a token
// directly, several memberships return the candidates for the principal to
// pick from via Switch.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest

	err := decodeJSON(r, &req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if req.PrincipalID == uuid.Nil {
		respondError(ctx, w, errs.Wrap(errs.ErrValidation, errMissingPrincipal))
		return
	}

	result, err := h.sessions.ResolveLogin(ctx, req.PrincipalID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if result.Context != nil {
		write.JSONResponse(ctx, w, http.StatusOK, sessionResponse{
			Token:          result.Token,
			OrganizationID: result.Context.OrganizationID(),
			Role:           result.Context.Role(),
		})

		return
	}

	choices := make([]membershipChoice, 0, len(result.Choices))
	for _, membership := range result.Choices {
		choices = append(choices, membershipChoice{
			OrganizationID: membership.OrganizationID,
			Role:           membership.Role,
		})
	}

	write.JSONResponse(ctx, w, http.StatusOK, loginChoicesResponse{Choices: choices})
}

type switchRequest struct {
	OrganizationID uuid.UUID `json:"organizationId"`
}

// Switch moves the caller's active organization and issues a fresh token.
// The target membership is validated like any other resolution.
func (h *SessionHandler) Switch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, err := careloopcontext.ExtractPrincipal(ctx)
	if err != nil {
		respondError(ctx, w, errs.Wrap(session.ErrInvalidToken, err))
		return
	}

	var req switchRequest

	err = decodeJSON(r, &req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if req.OrganizationID == uuid.Nil {
		respondError(ctx, w, errs.Wrap(errs.ErrValidation, errMissingOrganization))
		return
	}

	sc, token, err := h.sessions.Switch(ctx, principalID, req.OrganizationID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusOK, sessionResponse{
		Token:          token,
		OrganizationID: sc.OrganizationID(),
		Role:           sc.Role(),
	})
}
