package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/blobstore"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/db"
	"github.com/careloop/careloop/internal/docstore"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
)

const (
	retryDelay    = 200 * time.Millisecond
	retryMaxDelay = 2 * time.Second
	retryAttempts = 5

	// maxDiagnosticIDs caps how many unmigrated identifiers a blocked
	// transition reports; the count is always exact.
	maxDiagnosticIDs = 20
)

var (
	ErrMigrationComplete    = errors.New("migration already complete")
	ErrInvalidTransition    = errors.New("transition not allowed from current state")
	ErrLoadingMigrationRun  = errors.New("failed to load migration run")
	ErrUnknownLegacyRole    = errors.New("legacy role has no membership mapping")
	ErrRootOrgMissing       = errors.New("root organization not recorded on migration run")
	ErrPastPointOfNoReturn  = errors.New("constraints already tightened, restore from backup instead")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
)

// BlockedError reports a failed coverage check. It names the check and the
// records still missing their tenant tag, truncated for readability.
type BlockedError struct {
	Check      string
	Unmigrated []string
	Total      int
}

func (e *BlockedError) Error() string {
	shown := e.Unmigrated
	suffix := ""

	if len(shown) > maxDiagnosticIDs {
		shown = shown[:maxDiagnosticIDs]
		suffix = ", ..."
	}

	return fmt.Sprintf("%s: %d unmigrated records in %s [%s%s]",
		errs.ErrMigrationBlocked, e.Total, e.Check, strings.Join(shown, ", "), suffix)
}

func (e *BlockedError) Unwrap() error {
	return errs.ErrMigrationBlocked
}

// Locker is the single-runner lease the coordinator holds for the duration
// of a step.
type Locker interface {
	Acquire(ctx context.Context) error
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// Coordinator drives the one-time transition of a single-tenant dataset into
// the multi-tenant model across the relational, document and blob stores. It
// is the only component handed the raw repo: it runs before principal
// traffic, outside any session context.
type Coordinator struct {
	repo      repo.Repo
	migrator  db.Migrator
	documents docstore.Store
	blobs     blobstore.Store
	lock      Locker
	auditor   *auditor.Auditor
	cfg       *config.Config
}

func NewCoordinator(
	repository repo.Repo,
	migrator db.Migrator,
	documents docstore.Store,
	blobs blobstore.Store,
	lock Locker,
	aud *auditor.Auditor,
	cfg *config.Config,
) *Coordinator {
	return &Coordinator{
		repo:      repository,
		migrator:  migrator,
		documents: documents,
		blobs:     blobs,
		lock:      lock,
		auditor:   aud,
		cfg:       cfg,
	}
}

// Status loads the migration run for the configured environment, creating
// the initial record on first contact.
func (c *Coordinator) Status(ctx context.Context) (*model.MigrationRun, error) {
	run := &model.MigrationRun{}

	found, err := c.repo.First(ctx, run, *repo.NewQuery().
		Where(repo.EnvironmentField, c.cfg.Migration.Environment),
	)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingMigrationRun, err)
	}

	if found {
		return run, nil
	}

	run = &model.MigrationRun{
		ID:          uuid.New(),
		Environment: c.cfg.Migration.Environment,
		State:       model.StateNotStarted,
	}

	err = c.repo.Create(ctx, run)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingMigrationRun, err)
	}

	return run, nil
}

// Step advances the migration by exactly one transition under the runner
// lock.
func (c *Coordinator) Step(ctx context.Context) (model.MigrationState, error) {
	err := c.lock.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer c.releaseLock(ctx)

	run, err := c.Status(ctx)
	if err != nil {
		return "", err
	}

	transition, ok := NextTransition(run.State)
	if !ok {
		return run.State, ErrMigrationComplete
	}

	err = c.apply(ctx, run, transition)
	if err != nil {
		return run.State, err
	}

	return run.State, nil
}

// Run advances the migration until complete or blocked, refreshing the
// runner lease between steps.
func (c *Coordinator) Run(ctx context.Context) error {
	err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.releaseLock(ctx)

	run, err := c.Status(ctx)
	if err != nil {
		return err
	}

	for {
		transition, ok := NextTransition(run.State)
		if !ok {
			return nil
		}

		err = c.apply(ctx, run, transition)
		if err != nil {
			return err
		}

		err = c.lock.Refresh(ctx)
		if err != nil {
			return err
		}
	}
}

func (c *Coordinator) apply(ctx context.Context, run *model.MigrationRun, transition Transition) error {
	ctx = log.InjectMigrationStep(ctx, transition.String())

	machine := newStateMachine(run.State)
	if !machine.Can(transition.String()) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, transition, run.State)
	}

	log.Info(ctx, "Executing migration step")

	err := c.execute(ctx, run, transition)
	if err != nil {
		metrics.MigrationSteps.WithLabelValues(transition.String(), metrics.ResultError).Inc()

		run.LastError = err.Error()
		if setErr := c.repo.Set(ctx, run); setErr != nil {
			log.Error(ctx, "failed to record migration step error", setErr)
		}

		return err
	}

	err = machine.Event(ctx, transition.String())
	if err != nil {
		return errs.Wrap(ErrInvalidTransition, err)
	}

	run.State = model.MigrationState(machine.Current())
	run.LastError = ""

	// Set rather than Patch: clearing LastError writes a zero value.
	err = c.repo.Set(ctx, run)
	if err != nil {
		return errs.Wrap(ErrLoadingMigrationRun, err)
	}

	metrics.MigrationSteps.WithLabelValues(transition.String(), metrics.ResultOK).Inc()

	err = c.auditor.MigrationStepCompleted(ctx, run.Environment, transition.String())
	if err != nil {
		log.Warn(ctx, "failed to audit migration step")
	}

	log.Info(ctx, "Migration step completed")

	return nil
}

func (c *Coordinator) execute(ctx context.Context, run *model.MigrationRun, transition Transition) error {
	switch transition {
	case TransitionPrepareSchema:
		return c.prepareSchema(ctx)
	case TransitionBackfill:
		return c.backfillRelational(ctx, run)
	case TransitionVerifyBackfill:
		return c.verifyBackfill(ctx)
	case TransitionBackfillDocuments:
		return c.backfillDocuments(ctx, run)
	case TransitionMigrateBlobPaths:
		return c.migrateBlobPaths(ctx)
	case TransitionTightenConstraints:
		return c.tightenConstraints(ctx)
	case TransitionRetireLegacyRoles:
		return c.retireLegacyRoles(ctx)
	case TransitionComplete:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, transition)
	}
}

func (c *Coordinator) releaseLock(ctx context.Context) {
	err := c.lock.Release(ctx)
	if err != nil {
		log.Warn(ctx, "failed to release migration lock")
	}
}

func (c *Coordinator) retrier() *retry.Retrier {
	return retry.New(
		retry.Delay(retryDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Attempts(retryAttempts),
		retry.LastErrorOnly(true),
	)
}
