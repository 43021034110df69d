package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/directory"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
)

var (
	ErrLoadingSigningKey  = errors.New("error loading session signing key")
	ErrResolveSession     = errors.New("failed to resolve session context")
	ErrListHomeAssigments = errors.New("failed to list home assignments")
)

// LoginResult is the outcome of a login time resolution. With exactly one
// membership the context is resolved and a token issued; with several the
// principal must pick one and Choices carries the candidates.
type LoginResult struct {
	Context *Context
	Token   string
	Choices []*model.Membership
}

// Resolver resolves session contexts. Every resolution re-validates the
// membership against the directory, so a revoked membership stops working on
// the next request regardless of any token still in flight.
type Resolver struct {
	directory directory.Directory
	repo      repo.Repo
	auditor   *auditor.Auditor
	codec     tokenCodec
	timeout   config.Session
}

func NewResolver(
	dir directory.Directory,
	repository repo.Repo,
	aud *auditor.Auditor,
	cfg *config.Config,
) (*Resolver, error) {
	signingKey, err := commoncfg.LoadValueFromSourceRef(cfg.Session.SigningKey)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingSigningKey, err)
	}

	return &Resolver{
		directory: dir,
		repo:      repository,
		auditor:   aud,
		codec: tokenCodec{
			signingKey: signingKey,
			ttl:        cfg.Session.TokenTTL,
		},
		timeout: cfg.Session,
	}, nil
}

// Resolve builds the session context for a principal acting in an
// organization. A missing or inactive membership is denied: the claims may be
// stale, and a revoked principal learns only that the action is not
// permitted. The zero-membership state is ResolveLogin's to report. A
// directory failure fails closed, it never falls back to a cached grant.
func (r *Resolver) Resolve(ctx context.Context, principalID, orgID uuid.UUID) (*Context, error) {
	dirCtx, cancel := context.WithTimeout(ctx, r.timeout.DirectoryTimeout)
	defer cancel()

	membership, err := r.directory.GetActiveMembership(dirCtx, principalID, orgID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			metrics.SessionResolutions.WithLabelValues("forbidden").Inc()

			return nil, errs.Wrap(errs.ErrForbidden, err)
		}

		metrics.SessionResolutions.WithLabelValues(metrics.ResultError).Inc()

		return nil, errs.Wrap(ErrResolveSession, err)
	}

	homeIDs, err := r.homeIDsFor(ctx, membership)
	if err != nil {
		metrics.SessionResolutions.WithLabelValues(metrics.ResultError).Inc()

		return nil, err
	}

	metrics.SessionResolutions.WithLabelValues(metrics.ResultOK).Inc()

	return NewContext(principalID, orgID, membership.Role, homeIDs), nil
}

// ResolveLogin resolves the post-login context. No active membership is a
// no-tenant error, one membership auto-selects, several defer to the
// principal.
func (r *Resolver) ResolveLogin(ctx context.Context, principalID uuid.UUID) (*LoginResult, error) {
	dirCtx, cancel := context.WithTimeout(ctx, r.timeout.DirectoryTimeout)
	defer cancel()

	memberships, err := r.directory.ListActiveMemberships(dirCtx, principalID)
	if err != nil {
		return nil, errs.Wrap(ErrResolveSession, err)
	}

	switch len(memberships) {
	case 0:
		metrics.SessionResolutions.WithLabelValues(metrics.ReasonNoTenant).Inc()

		return nil, errs.Wrap(errs.ErrNoTenant, ErrResolveSession)
	case 1:
		sc, token, err := r.autoSelect(ctx, principalID, memberships[0])
		if err != nil {
			return nil, err
		}

		return &LoginResult{Context: sc, Token: token}, nil
	default:
		return &LoginResult{Choices: memberships}, nil
	}
}

// Switch moves the principal's active organization. The target membership is
// validated the same way as any other resolution and a fresh token is
// issued; the previous token simply ages out.
func (r *Resolver) Switch(ctx context.Context, principalID, orgID uuid.UUID) (*Context, string, error) {
	sc, err := r.Resolve(ctx, principalID, orgID)
	if err != nil {
		return nil, "", err
	}

	token, err := r.codec.issue(principalID, orgID, sc.ResolvedAt())
	if err != nil {
		return nil, "", err
	}

	err = r.auditor.OrganizationSwitched(ctx, orgID)
	if err != nil {
		log.Warn(ctx, "failed to audit organization switch")
	}

	return sc, token, nil
}

// ParseClaims verifies a raw token's signature and expiry and returns the
// principal and organization it names, without touching the directory.
func (r *Resolver) ParseClaims(raw string) (uuid.UUID, uuid.UUID, error) {
	claims, err := r.codec.parse(raw)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	principalID, err := claims.principalID()
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return principalID, claims.OrganizationID, nil
}

// FromToken resolves the context carried by a session token. The token only
// names the selection; the membership behind it is re-validated here.
func (r *Resolver) FromToken(ctx context.Context, raw string) (*Context, error) {
	claims, err := r.codec.parse(raw)
	if err != nil {
		return nil, err
	}

	principalID, err := claims.principalID()
	if err != nil {
		return nil, err
	}

	return r.Resolve(ctx, principalID, claims.OrganizationID)
}

func (r *Resolver) autoSelect(ctx context.Context, principalID uuid.UUID, membership *model.Membership) (*Context, string, error) {
	homeIDs, err := r.homeIDsFor(ctx, membership)
	if err != nil {
		return nil, "", err
	}

	sc := NewContext(principalID, membership.OrganizationID, membership.Role, homeIDs)

	token, err := r.codec.issue(principalID, membership.OrganizationID, sc.ResolvedAt())
	if err != nil {
		return nil, "", err
	}

	return sc, token, nil
}

func (r *Resolver) homeIDsFor(ctx context.Context, membership *model.Membership) ([]uuid.UUID, error) {
	if !membership.Role.IsHomeScoped() {
		return nil, nil
	}

	var assignments []*model.HomeAssignment

	_, err := r.repo.List(ctx, model.HomeAssignment{}, &assignments, *repo.NewQuery().
		Where(repo.PrincipalIDField, membership.PrincipalID).
		Where(repo.OrganizationIDField, membership.OrganizationID).
		Where(repo.ActiveField, true),
	)
	if err != nil {
		return nil, errs.Wrap(ErrListHomeAssigments, err)
	}

	homeIDs := make([]uuid.UUID, 0, len(assignments))
	for _, assignment := range assignments {
		homeIDs = append(homeIDs, assignment.HomeID)
	}

	return homeIDs, nil
}
