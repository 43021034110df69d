package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/policy"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/internal/session"
)

var (
	ErrNilSessionContext = errors.New("session context must not be nil")
	ErrTenantMismatch    = errors.New("resource belongs to another organization")
	ErrParentNotFound    = errors.New("parent record not found")
	ErrHomeScope         = errors.New("resource is outside the caller's assigned homes")
)

// Resource is a persisted entity subject to tenant scoping.
type Resource interface {
	repo.Resource
	model.TenantScoped
}

// Engine composes the tenant predicate onto every query and guards every
// single-record access. It is the only data path reachable from request
// handling code; the raw repo is handed out solely to the migration
// coordinator, which runs before any principal traffic.
type Engine struct {
	repo    repo.Repo
	auditor *auditor.Auditor
}

func NewEngine(repository repo.Repo, aud *auditor.Auditor) *Engine {
	return &Engine{
		repo:    repository,
		auditor: aud,
	}
}

// List runs a tenant-scoped list query. The organization predicate is
// appended here, after any caller conditions, so no caller can forget it.
// CareProvider sessions are additionally narrowed to their assigned homes.
func (e *Engine) List(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	entity Resource,
	result any,
	query *repo.Query,
) (int, error) {
	if sc == nil {
		return 0, ErrNilSessionContext
	}

	err := e.evaluate(ctx, sc, policy.ActionRead, kind)
	if err != nil {
		return 0, err
	}

	query, err = e.scope(ctx, sc, kind, query)
	if err != nil {
		return 0, err
	}

	return e.repo.List(ctx, entity, result, *query)
}

// Get loads a single record by its primary key and asserts the caller may
// see it. A record in another organization reads as absent.
func (e *Engine) Get(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	id uuid.UUID,
	entity Resource,
) error {
	if sc == nil {
		return ErrNilSessionContext
	}

	err := e.evaluate(ctx, sc, policy.ActionRead, kind)
	if err != nil {
		return err
	}

	found, err := e.repo.First(ctx, entity, *repo.NewQuery().Where(repo.IDField, id))
	if err != nil {
		return err
	}

	if !found {
		return errs.ErrNotFound
	}

	return e.AssertAccessible(ctx, sc, kind, id, entity)
}

// Create stores a new tenant-scoped record. The organization id is stamped
// from the session; an entity arriving pre-stamped with a different
// organization is rejected before it reaches storage.
func (e *Engine) Create(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	entity Resource,
) error {
	if sc == nil {
		return ErrNilSessionContext
	}

	err := e.evaluate(ctx, sc, policy.ActionCreate, kind)
	if err != nil {
		return err
	}

	if entity.OrganizationRef() != uuid.Nil && entity.OrganizationRef() != sc.OrganizationID() {
		return errs.Wrap(errs.ErrValidation, ErrTenantMismatch)
	}

	if assignable, ok := any(entity).(model.TenantAssignable); ok {
		assignable.AssignOrganization(sc.OrganizationID())
	}

	// For parent scoped records this resolves the parent: a parent outside
	// the caller's organization reads as absent, so the child cannot be
	// attached across the boundary.
	err = e.AssertAccessible(ctx, sc, kind, uuid.Nil, entity)
	if err != nil {
		return err
	}

	return e.repo.Create(ctx, entity)
}

// Update patches an existing record. The write is addressed by the id that
// passed the accessibility check and carries the tenant predicate, so neither
// a guessed identifier nor an entity smuggling a different primary key can
// touch a row the check never saw.
func (e *Engine) Update(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	id uuid.UUID,
	entity Resource,
) error {
	if sc == nil {
		return ErrNilSessionContext
	}

	err := e.evaluate(ctx, sc, policy.ActionUpdate, kind)
	if err != nil {
		return err
	}

	err = e.AssertAccessible(ctx, sc, kind, id, entity)
	if err != nil {
		return err
	}

	updated, err := e.repo.Patch(ctx, entity, *repo.NewQuery().
		Where(repo.IDField, id).
		Where(repo.OrganizationIDField, sc.OrganizationID()),
	)
	if err != nil {
		return err
	}

	if !updated {
		return errs.Wrap(errs.ErrNotFound, ErrTenantMismatch)
	}

	return nil
}

// Delete removes a record under the same guard as Update.
func (e *Engine) Delete(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	id uuid.UUID,
	entity Resource,
) error {
	if sc == nil {
		return ErrNilSessionContext
	}

	err := e.evaluate(ctx, sc, policy.ActionDelete, kind)
	if err != nil {
		return err
	}

	err = e.AssertAccessible(ctx, sc, kind, id, entity)
	if err != nil {
		return err
	}

	deleted, err := e.repo.Delete(ctx, entity, *repo.NewQuery().
		Where(repo.IDField, id).
		Where(repo.OrganizationIDField, sc.OrganizationID()),
	)
	if err != nil {
		return err
	}

	if !deleted {
		return errs.Wrap(errs.ErrNotFound, ErrTenantMismatch)
	}

	return nil
}

// AssertAccessible checks a directly addressed record against the session.
// A cross-tenant record returns not-found, indistinguishable from a record
// that does not exist, while the attempt is still recorded on the security
// audit trail. In-tenant home overlay violations are ordinary denials.
func (e *Engine) AssertAccessible(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	id uuid.UUID,
	entity Resource,
) error {
	if sc == nil {
		return ErrNilSessionContext
	}

	orgID, err := e.effectiveOrganization(ctx, entity)
	if err != nil {
		return err
	}

	if orgID != sc.OrganizationID() {
		metrics.CrossTenantAttempts.Inc()
		metrics.AccessDenials.WithLabelValues(metrics.ReasonCrossTenant).Inc()

		auditErr := e.auditor.CrossTenantAttempt(ctx, sc.OrganizationID(), string(kind), id)
		if auditErr != nil {
			log.Warn(ctx, "failed to audit cross-tenant attempt")
		}

		return errs.Wrap(errs.ErrNotFound, ErrTenantMismatch)
	}

	return e.assertScopes(ctx, sc, kind, id, entity)
}

// scope appends the tenant predicate and, for home scoped sessions, the home
// overlay to a list query.
func (e *Engine) scope(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	query *repo.Query,
) (*repo.Query, error) {
	if query == nil {
		query = repo.NewQuery()
	}

	query = query.Where(repo.OrganizationIDField, sc.OrganizationID())

	if !sc.Role().IsHomeScoped() {
		return query, nil
	}

	homeIDs := sc.HomeIDs()

	switch kind {
	case policy.KindHome:
		return query.Where(repo.IDField, homeIDs), nil
	case policy.KindResident, policy.KindHomeAssignment, policy.KindIncidentReport:
		return query.Where(repo.HomeIDField, homeIDs), nil
	case policy.KindCareLog, policy.KindDocument:
		residentIDs, err := e.residentIDsInHomes(ctx, sc)
		if err != nil {
			return nil, err
		}

		return query.Where(repo.ResidentIDField, residentIDs), nil
	default:
		return query, nil
	}
}

// effectiveOrganization resolves the organization a record truly belongs to.
// For parent scoped records the parent row is authoritative; a diverging
// denormalized copy is logged and counted, never auto-corrected here.
func (e *Engine) effectiveOrganization(ctx context.Context, entity Resource) (uuid.UUID, error) {
	parentScoped, ok := any(entity).(model.ParentScoped)
	if !ok {
		return entity.OrganizationRef(), nil
	}

	parent := parentScoped.NewParent()

	parentResource, ok := parent.(repo.Resource)
	if !ok {
		return entity.OrganizationRef(), nil
	}

	found, err := e.repo.First(ctx, parentResource, *repo.NewQuery().
		Where(repo.IDField, parentScoped.ParentRef()),
	)
	if err != nil {
		return uuid.Nil, err
	}

	if !found {
		return uuid.Nil, errs.Wrap(errs.ErrNotFound, ErrParentNotFound)
	}

	parentOrg := parent.OrganizationRef()

	if entity.OrganizationRef() != uuid.Nil && entity.OrganizationRef() != parentOrg {
		metrics.DenormalizedDivergence.WithLabelValues(entity.TableName()).Inc()

		log.Warn(ctx, "denormalized organization id diverges from parent",
			slog.String("table", entity.TableName()),
			slog.String("parentOrganizationId", parentOrg.String()),
			slog.String("childOrganizationId", entity.OrganizationRef().String()),
		)
	}

	return parentOrg, nil
}

// assertScopes enforces the home overlay for home scoped sessions. These are
// in-tenant denials and surface as forbidden, not as not-found.
func (e *Engine) assertScopes(
	ctx context.Context,
	sc *session.Context,
	kind policy.ResourceKind,
	id uuid.UUID,
	entity Resource,
) error {
	if !sc.Role().IsHomeScoped() {
		return nil
	}

	homeID, ok := e.homeOf(ctx, entity)
	if !ok {
		return nil
	}

	if !sc.AllowsHome(homeID) {
		metrics.AccessDenials.WithLabelValues(metrics.ReasonHomeScope).Inc()

		auditErr := e.auditor.AccessDenied(ctx, sc.OrganizationID(), "access", string(kind), string(metrics.ReasonHomeScope))
		if auditErr != nil {
			log.Warn(ctx, "failed to audit home scope denial")
		}

		return errs.Wrap(errs.ErrForbidden, ErrHomeScope)
	}

	return nil
}

func (e *Engine) homeOf(ctx context.Context, entity Resource) (uuid.UUID, bool) {
	if homeScoped, ok := any(entity).(model.HomeScoped); ok {
		return homeScoped.HomeRef(), true
	}

	if home, ok := any(entity).(*model.Home); ok {
		return home.ID, true
	}

	// Parent scoped records inherit the parent's home.
	parentScoped, ok := any(entity).(model.ParentScoped)
	if !ok {
		return uuid.Nil, false
	}

	parent := parentScoped.NewParent()

	parentResource, ok := parent.(repo.Resource)
	if !ok {
		return uuid.Nil, false
	}

	found, err := e.repo.First(ctx, parentResource, *repo.NewQuery().
		Where(repo.IDField, parentScoped.ParentRef()),
	)
	if err != nil || !found {
		return uuid.Nil, false
	}

	if homeScoped, ok := parent.(model.HomeScoped); ok {
		return homeScoped.HomeRef(), true
	}

	return uuid.Nil, false
}

func (e *Engine) residentIDsInHomes(ctx context.Context, sc *session.Context) ([]uuid.UUID, error) {
	var residentIDs []uuid.UUID

	query := repo.NewQuery().
		Where(repo.OrganizationIDField, sc.OrganizationID()).
		Where(repo.HomeIDField, sc.HomeIDs())

	err := repo.ProcessInBatch(ctx, e.repo, query, repo.DefaultLimit,
		func(residents []*model.Resident) error {
			for _, resident := range residents {
				residentIDs = append(residentIDs, resident.ID)
			}

			return nil
		})
	if err != nil {
		return nil, err
	}

	return residentIDs, nil
}

func (e *Engine) evaluate(ctx context.Context, sc *session.Context, action policy.Action, kind policy.ResourceKind) error {
	err := policy.Evaluate(sc, action, kind)
	if err == nil {
		return nil
	}

	if errors.Is(err, errs.ErrForbidden) {
		reason := metrics.ReasonRoleDenied
		if policy.IsPHI(kind) && !sc.Role().HasPHIAccess() {
			reason = metrics.ReasonPHIDenied
		}

		metrics.AccessDenials.WithLabelValues(reason).Inc()

		auditErr := e.auditor.AccessDenied(ctx, sc.OrganizationID(), string(action), string(kind), reason)
		if auditErr != nil {
			log.Warn(ctx, "failed to audit access denial")
		}
	}

	return err
}
