package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/utils/sanitise"
)

var (
	ErrCreateOrganization   = errors.New("failed to create organization")
	ErrGetOrganization      = errors.New("failed to get organization")
	ErrCreateMembership     = errors.New("failed to create membership")
	ErrGetMembership        = errors.New("failed to get membership")
	ErrListMemberships      = errors.New("failed to list memberships")
	ErrDeactivateMembership = errors.New("failed to deactivate membership")

	ErrOrganizationNameEmpty   = errors.New("organization name must not be empty")
	ErrOrganizationNameTooLong = errors.New("organization name exceeds maximum length")
	ErrOrganizationInactive    = errors.New("organization is not active")
	ErrMembershipExists        = errors.New("principal already has an active membership in this organization")
	ErrOwnerGrantRestricted    = errors.New("only a tenant owner may grant the tenant owner role")
	ErrOwnerRevokeRestricted   = errors.New("only a tenant owner may revoke the tenant owner role")
)

// Directory is the tenant directory: organizations and who belongs to them.
// It is the single authority the session resolver validates memberships
// against.
type Directory interface {
	CreateOrganization(ctx context.Context, name string, owner uuid.UUID) (*model.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	CreateMembership(ctx context.Context, membership *model.Membership) (*model.Membership, error)
	GetActiveMembership(ctx context.Context, principalID, orgID uuid.UUID) (*model.Membership, error)
	ListActiveMemberships(ctx context.Context, principalID uuid.UUID) ([]*model.Membership, error)
	DeactivateMembership(ctx context.Context, performedBy, principalID, orgID uuid.UUID) error
}

type Manager struct {
	repo    repo.Repo
	auditor *auditor.Auditor
}

func NewManager(repository repo.Repo, auditor *auditor.Auditor) *Manager {
	return &Manager{
		repo:    repository,
		auditor: auditor,
	}
}

// CreateOrganization creates a tenant together with its founding owner
// membership. The two writes share a transaction: an organization without an
// owner would be unreachable by every resolver path.
func (m *Manager) CreateOrganization(ctx context.Context, name string, owner uuid.UUID) (*model.Organization, error) {
	name, err := sanitise.DisplayName(name)
	if err != nil {
		return nil, errs.Wrap(ErrCreateOrganization, err)
	}

	if name == "" {
		return nil, errs.Wrap(errs.ErrValidation, ErrOrganizationNameEmpty)
	}

	if len(name) > model.MaxOrganizationNameLength {
		return nil, errs.Wrap(errs.ErrValidation, ErrOrganizationNameTooLong)
	}

	org := &model.Organization{
		ID:     uuid.New(),
		Name:   name,
		Active: true,
	}

	membership := &model.Membership{
		ID:             uuid.New(),
		PrincipalID:    owner,
		OrganizationID: org.ID,
		Role:           model.RoleTenantOwner,
		InvitedBy:      owner,
		JoinedAt:       time.Now().UTC(),
		Active:         true,
	}

	err = m.repo.Transaction(ctx, func(ctx context.Context, txRepo repo.Repo) error {
		err := txRepo.Create(ctx, org)
		if err != nil {
			return err
		}

		return txRepo.Create(ctx, membership)
	})
	if err != nil {
		return nil, errs.Wrap(ErrCreateOrganization, err)
	}

	err = m.auditor.OrganizationCreated(ctx, org.ID, org.Name)
	if err != nil {
		log.Warn(ctx, "failed to audit organization creation")
	}

	return org, nil
}

func (m *Manager) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org := &model.Organization{}

	found, err := m.repo.First(ctx, org, *repo.NewQuery().Where(repo.IDField, id))
	if err != nil {
		return nil, errs.Wrap(ErrGetOrganization, err)
	}

	if !found {
		return nil, errs.Wrap(errs.ErrNotFound, ErrGetOrganization)
	}

	return org, nil
}

// CreateMembership invites a principal into an organization. A second active
// membership for the same principal and organization is a conflict, a
// previously deactivated one does not block re-inviting.
func (m *Manager) CreateMembership(ctx context.Context, membership *model.Membership) (*model.Membership, error) {
	_, err := model.ParseRole(string(membership.Role))
	if err != nil {
		return nil, errs.Wrap(errs.ErrValidation, err)
	}

	org, err := m.GetOrganization(ctx, membership.OrganizationID)
	if err != nil {
		return nil, err
	}

	if !org.Active {
		return nil, errs.Wrap(errs.ErrValidation, ErrOrganizationInactive)
	}

	if membership.Role == model.RoleTenantOwner {
		granter, err := m.GetActiveMembership(ctx, membership.InvitedBy, membership.OrganizationID)
		if err != nil || granter.Role != model.RoleTenantOwner {
			return nil, errs.Wrap(errs.ErrForbidden, ErrOwnerGrantRestricted)
		}
	}

	existing, err := m.GetActiveMembership(ctx, membership.PrincipalID, membership.OrganizationID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		return nil, errs.Wrap(errs.ErrConflict, ErrMembershipExists)
	}

	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}

	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}

	membership.Active = true

	err = m.repo.Create(ctx, membership)
	if err != nil {
		if errors.Is(err, repo.ErrUniqueConstraint) {
			return nil, errs.Wrap(errs.ErrConflict, ErrMembershipExists)
		}

		return nil, errs.Wrap(ErrCreateMembership, err)
	}

	err = m.auditor.MembershipCreated(ctx, membership.OrganizationID, membership.PrincipalID, string(membership.Role))
	if err != nil {
		log.Warn(ctx, "failed to audit membership creation")
	}

	return membership, nil
}

// GetActiveMembership returns the principal's active membership in the given
// organization. Inactive memberships are invisible here: deactivation must
// take effect on the next resolution.
func (m *Manager) GetActiveMembership(ctx context.Context, principalID, orgID uuid.UUID) (*model.Membership, error) {
	membership := &model.Membership{}

	found, err := m.repo.First(ctx, membership, *repo.NewQuery().
		Where(repo.PrincipalIDField, principalID).
		Where(repo.OrganizationIDField, orgID).
		Where(repo.ActiveField, true),
	)
	if err != nil {
		return nil, errs.Wrap(ErrGetMembership, err)
	}

	if !found {
		return nil, errs.Wrap(errs.ErrNotFound, ErrGetMembership)
	}

	return membership, nil
}

func (m *Manager) ListActiveMemberships(ctx context.Context, principalID uuid.UUID) ([]*model.Membership, error) {
	var memberships []*model.Membership

	_, err := m.repo.List(ctx, model.Membership{}, &memberships, *repo.NewQuery().
		Where(repo.PrincipalIDField, principalID).
		Where(repo.ActiveField, true).
		OrderBy(repo.CreatedField, repo.Asc),
	)
	if err != nil {
		return nil, errs.Wrap(ErrListMemberships, err)
	}

	// A deactivated organization takes its memberships out of circulation
	// without touching the membership rows.
	active := memberships[:0]

	for _, membership := range memberships {
		org, err := m.GetOrganization(ctx, membership.OrganizationID)
		if err != nil {
			return nil, errs.Wrap(ErrListMemberships, err)
		}

		if org.Active {
			active = append(active, membership)
		}
	}

	return active, nil
}

// DeactivateMembership revokes a membership. Deactivating an already
// inactive or absent membership succeeds, revocation is idempotent. Revoking
// a tenant owner requires a tenant owner, mirroring the grant side.
func (m *Manager) DeactivateMembership(ctx context.Context, performedBy, principalID, orgID uuid.UUID) error {
	membership, err := m.GetActiveMembership(ctx, principalID, orgID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}

		return errs.Wrap(ErrDeactivateMembership, err)
	}

	if membership.Role == model.RoleTenantOwner {
		actor, err := m.GetActiveMembership(ctx, performedBy, orgID)
		if err != nil || actor.Role != model.RoleTenantOwner {
			return errs.Wrap(errs.ErrForbidden, ErrOwnerRevokeRestricted)
		}
	}

	membership.Active = false

	// Set writes the full row; a zero-valued active flag would be skipped by
	// a partial patch.
	err = m.repo.Set(ctx, membership)
	if err != nil {
		return errs.Wrap(ErrDeactivateMembership, err)
	}

	err = m.auditor.MembershipDeactivated(ctx, orgID, principalID)
	if err != nil {
		log.Warn(ctx, "failed to audit membership deactivation")
	}

	return nil
}
