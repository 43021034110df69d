package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/api/write"
	"github.com/careloop/careloop/internal/directory"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/policy"
	"github.com/careloop/careloop/internal/session"
	careloopcontext "github.com/careloop/careloop/utils/context"
)

var errMissingOwner = errors.New("owner id must be specified")

// OrganizationHandler serves tenant directory operations. Creating and
// listing organizations are pre-tenant operations; membership management
// requires an active session in the target organization.
type OrganizationHandler struct {
	directory directory.Directory
	sessions  SessionService
}

func NewOrganizationHandler(dir directory.Directory, sessions SessionService) *OrganizationHandler {
	return &OrganizationHandler{
		directory: dir,
		sessions:  sessions,
	}
}

type createOrganizationRequest struct {
	Name string `json:"name"`

	// OwnerID is only honored when no session token accompanies the request,
	// which happens exactly once per deployment at bootstrap.
	OwnerID uuid.UUID `json:"ownerId"`
}

type organizationResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

// Create creates an organization owned by the calling principal.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrganizationRequest

	err := decodeJSON(r, &req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	owner, err := careloopcontext.ExtractPrincipal(ctx)
	if err != nil {
		owner = req.OwnerID
	}

	if owner == uuid.Nil {
		respondError(ctx, w, errs.Wrap(errs.ErrValidation, errMissingOwner))
		return
	}

	org, err := h.directory.CreateOrganization(ctx, req.Name, owner)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusCreated, organizationResponse{
		ID:     org.ID,
		Name:   org.Name,
		Active: org.Active,
	})
}

type membershipSummary struct {
	OrganizationID   uuid.UUID  `json:"organizationId"`
	OrganizationName string     `json:"organizationName,omitempty"`
	Role             model.Role `json:"role"`
}

// List returns the calling principal's active memberships, the input to the
// organization choice step after login.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, err := careloopcontext.ExtractPrincipal(ctx)
	if err != nil {
		respondError(ctx, w, errs.Wrap(session.ErrInvalidToken, err))
		return
	}

	memberships, err := h.directory.ListActiveMemberships(ctx, principalID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	summaries := make([]membershipSummary, 0, len(memberships))

	for _, membership := range memberships {
		summary := membershipSummary{
			OrganizationID: membership.OrganizationID,
			Role:           membership.Role,
		}

		org, err := h.directory.GetOrganization(ctx, membership.OrganizationID)
		if err == nil {
			summary.OrganizationName = org.Name
		}

		summaries = append(summaries, summary)
	}

	write.JSONResponse(ctx, w, http.StatusOK, map[string]any{"items": summaries})
}

type createMembershipRequest struct {
	PrincipalID uuid.UUID `json:"principalId"`
	Role        string    `json:"role"`
}

type membershipResponse struct {
	ID             uuid.UUID  `json:"id"`
	PrincipalID    uuid.UUID  `json:"principalId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Role           model.Role `json:"role"`
	Active         bool       `json:"active"`
}

// CreateMembership invites a principal into the caller's organization. The
// caller must hold the invite right there; granting ownership is further
// restricted inside the directory.
func (h *OrganizationHandler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	orgID, err := pathID(r, "id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if orgID != sc.OrganizationID() {
		// Memberships are managed from inside the organization they grant.
		respondError(ctx, w, errs.ErrNotFound)
		return
	}

	err = policy.Evaluate(sc, policy.ActionInvite, policy.KindMembership)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req createMembershipRequest

	err = decodeJSON(r, &req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		respondError(ctx, w, errs.Wrap(errs.ErrValidation, err))
		return
	}

	membership, err := h.directory.CreateMembership(ctx, &model.Membership{
		PrincipalID:    req.PrincipalID,
		OrganizationID: orgID,
		Role:           role,
		InvitedBy:      sc.PrincipalID(),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusCreated, membershipResponse{
		ID:             membership.ID,
		PrincipalID:    membership.PrincipalID,
		OrganizationID: membership.OrganizationID,
		Role:           membership.Role,
		Active:         membership.Active,
	})
}

// DeactivateMembership revokes a membership. The row stays behind for audit
// attribution; only its active flag drops.
func (h *OrganizationHandler) DeactivateMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	orgID, err := pathID(r, "id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if orgID != sc.OrganizationID() {
		respondError(ctx, w, errs.ErrNotFound)
		return
	}

	err = policy.Evaluate(sc, policy.ActionDeactivate, policy.KindMembership)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	principalID, err := pathID(r, "principalId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = h.directory.DeactivateMembership(ctx, sc.PrincipalID(), principalID, orgID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
