package migration_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/blobstore"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/docstore"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/migration"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/internal/repo/mock"
	"github.com/careloop/careloop/utils/blobpath"
)

type fakeMigrator struct {
	version int64
	applied []int64
}

func (m *fakeMigrator) MigrateToLatest(_ context.Context) error {
	return nil
}

func (m *fakeMigrator) MigrateTo(_ context.Context, version int64) error {
	m.version = version
	m.applied = append(m.applied, version)

	return nil
}

func (m *fakeMigrator) MigrateDownTo(_ context.Context, version int64) error {
	m.version = version
	m.applied = append(m.applied, version)

	return nil
}

func (m *fakeMigrator) CurrentVersion(_ context.Context) (int64, error) {
	return m.version, nil
}

type fakeLock struct {
	acquires int
	releases int
	held     bool
	fail     error
}

func (l *fakeLock) Acquire(_ context.Context) error {
	if l.fail != nil {
		return l.fail
	}

	l.acquires++
	l.held = true

	return nil
}

func (l *fakeLock) Refresh(_ context.Context) error {
	return nil
}

func (l *fakeLock) Release(_ context.Context) error {
	l.releases++
	l.held = false

	return nil
}

type fixture struct {
	coordinator *migration.Coordinator
	repo        *mock.Repository
	migrator    *fakeMigrator
	lock        *fakeLock
	documents   *docstore.MemoryStore
	blobs       *blobstore.MemoryStore
	cfg         *config.Config
}

func setupCoordinator(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      mock.NewRepository(),
		migrator:  &fakeMigrator{},
		lock:      &fakeLock{},
		documents: docstore.NewMemoryStore(),
		blobs:     blobstore.NewMemoryStore(),
		cfg: &config.Config{
			Migration: config.Migration{
				Environment:    "test",
				RootOrgName:    "Primary Care Organization",
				BatchSize:      2,
				PrepareVersion: 2,
				TightenVersion: 3,
			},
		},
	}

	f.coordinator = migration.NewCoordinator(
		f.repo,
		f.migrator,
		f.documents,
		f.blobs,
		f.lock,
		auditor.New(nil, &config.Config{}),
		f.cfg,
	)

	return f
}

// seedLegacyData populates every store with pre-tenancy records.
func seedLegacyData(t *testing.T, f *fixture) (residentID, principalID uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	residentID = uuid.New()
	principalID = uuid.New()
	homeID := uuid.New()

	require.NoError(t, f.repo.Create(ctx, &model.Home{ID: homeID, Name: "Sunrise"}))
	require.NoError(t, f.repo.Create(ctx, &model.Resident{
		ID:         residentID,
		HomeID:     homeID,
		GivenName:  "Ada",
		FamilyName: "Lovelace",
		Active:     true,
	}))
	require.NoError(t, f.repo.Create(ctx, &model.CareLog{
		ID:         uuid.New(),
		ResidentID: residentID,
		AuthorID:   principalID,
		Kind:       "note",
		OccurredAt: time.Now().UTC(),
	}))
	require.NoError(t, f.repo.Create(ctx, &model.Document{
		ID:         uuid.New(),
		ResidentID: residentID,
		BlobPath:   "uploads/care-plan.pdf",
	}))
	require.NoError(t, f.repo.Create(ctx, &model.LegacyRole{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Role:        "Caregiver",
		GrantedAt:   time.Now().UTC(),
	}))

	require.NoError(t, f.documents.Put(ctx, docstore.Record{
		ID:         uuid.New(),
		ResidentID: residentID,
		FileName:   "care-plan.pdf",
		BlobPath:   "uploads/care-plan.pdf",
	}))

	f.blobs.PutObject("uploads/care-plan.pdf", 42)

	return residentID, principalID
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create the initial run on first contact", func(t *testing.T) {
		f := setupCoordinator(t)

		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateNotStarted, run.State)
		assert.Equal(t, "test", run.Environment)

		again, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, run.ID, again.ID)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Should drive the migration to completion", func(t *testing.T) {
		f := setupCoordinator(t)
		residentID, principalID := seedLegacyData(t, f)

		err := f.coordinator.Run(ctx)
		require.NoError(t, err)

		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateComplete, run.State)
		assert.NotEqual(t, uuid.Nil, run.RootOrgID)
		assert.Empty(t, run.LastError)

		// Schema migrated to prepare, then tighten.
		assert.Equal(t, []int64{2, 3}, f.migrator.applied)

		// Every relational row carries the root organization.
		resident := &model.Resident{}
		found, err := f.repo.First(ctx, resident, *repo.NewQuery().Where(repo.IDField, residentID))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, run.RootOrgID, resident.OrganizationID)

		// Memberships derived from legacy roles.
		membership := &model.Membership{}
		found, err = f.repo.First(ctx, membership, *repo.NewQuery().
			Where(repo.PrincipalIDField, principalID).
			Where(repo.OrganizationIDField, run.RootOrgID),
		)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, model.RoleCareProvider, membership.Role)

		// Document store fully tagged.
		count, err := f.documents.CountUntagged(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		// Blobs relocated under the tenant prefix and paths rewritten.
		document := &model.Document{}
		found, err = f.repo.First(ctx, document, *repo.NewQuery().Where(repo.ResidentIDField, residentID))
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, blobpath.IsTenantScoped(document.BlobPath))

		_, err = f.blobs.Stat(ctx, document.BlobPath)
		assert.NoError(t, err)

		// Legacy roles retired.
		legacyCount, err := f.repo.Count(ctx, &model.LegacyRole{}, *repo.NewQuery())
		require.NoError(t, err)
		assert.Zero(t, legacyCount)

		assert.False(t, f.lock.held)
	})

	t.Run("Should be idempotent across a replayed backfill", func(t *testing.T) {
		f := setupCoordinator(t)
		_, principalID := seedLegacyData(t, f)

		// First run up to the backfill.
		for range 2 {
			_, err := f.coordinator.Step(ctx)
			require.NoError(t, err)
		}

		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, model.StateBackfilling, run.State)

		// Rewind the persisted state as if the runner died after doing the
		// work but before recording it; the replay must not duplicate
		// memberships or organizations.
		run.State = model.StateSchemaPrepared
		require.NoError(t, f.repo.Set(ctx, run))

		err = f.coordinator.Run(ctx)
		require.NoError(t, err)

		orgCount, err := f.repo.Count(ctx, &model.Organization{}, *repo.NewQuery())
		require.NoError(t, err)
		assert.Equal(t, 1, orgCount)

		membershipCount, err := f.repo.Count(ctx, &model.Membership{}, *repo.NewQuery().
			Where(repo.PrincipalIDField, principalID),
		)
		require.NoError(t, err)
		assert.Equal(t, 1, membershipCount)
	})

	t.Run("Should surface the lock error without stepping", func(t *testing.T) {
		f := setupCoordinator(t)
		f.lock.fail = migration.ErrLockHeld

		err := f.coordinator.Run(ctx)
		assert.ErrorIs(t, err, migration.ErrLockHeld)

		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateNotStarted, run.State)
	})
}

func TestStep(t *testing.T) {
	ctx := context.Background()

	t.Run("Should advance one transition at a time", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		state, err := f.coordinator.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateSchemaPrepared, state)

		state, err = f.coordinator.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateBackfilling, state)
	})

	t.Run("Should report completion once done", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		require.NoError(t, f.coordinator.Run(ctx))

		state, err := f.coordinator.Step(ctx)
		assert.ErrorIs(t, err, migration.ErrMigrationComplete)
		assert.Equal(t, model.StateComplete, state)
	})

	t.Run("Should abort on an unmapped legacy role", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		require.NoError(t, f.repo.Create(ctx, &model.LegacyRole{
			ID:          uuid.New(),
			PrincipalID: uuid.New(),
			Role:        "Superuser",
			GrantedAt:   time.Now().UTC(),
		}))

		_, err := f.coordinator.Step(ctx)
		require.NoError(t, err)

		_, err = f.coordinator.Step(ctx)
		assert.ErrorIs(t, err, migration.ErrUnknownLegacyRole)

		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateSchemaPrepared, run.State)
		assert.Contains(t, run.LastError, "Superuser")
	})
}

func TestVerifyBackfillBlocked(t *testing.T) {
	ctx := context.Background()

	t.Run("Should name the offending records", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		// prepare_schema, backfill.
		for range 2 {
			_, err := f.coordinator.Step(ctx)
			require.NoError(t, err)
		}

		// A row written untagged after the backfill.
		straggler := &model.Resident{
			ID:         uuid.New(),
			GivenName:  "Grace",
			FamilyName: "Hopper",
			Active:     true,
		}
		require.NoError(t, f.repo.Create(ctx, straggler))

		_, err := f.coordinator.Step(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrMigrationBlocked)

		var blocked *migration.BlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, "residents", blocked.Check)
		assert.Contains(t, blocked.Unmigrated, straggler.ID.String())
		assert.Equal(t, 1, blocked.Total)

		// The failed transition leaves the state unchanged and records the
		// error on the run.
		run, err := f.coordinator.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StateBackfilling, run.State)
		assert.Contains(t, run.LastError, "residents")
	})

	t.Run("Should block tightening on an untagged document record", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		// Up to BLOB_PATHS_MIGRATED.
		for range 5 {
			_, err := f.coordinator.Step(ctx)
			require.NoError(t, err)
		}

		straggler := docstore.Record{ID: uuid.New(), FileName: "late.pdf"}
		require.NoError(t, f.documents.Put(ctx, straggler))

		_, err := f.coordinator.Step(ctx)
		require.Error(t, err)

		var blocked *migration.BlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, "document_store", blocked.Check)
		assert.Contains(t, blocked.Unmigrated, straggler.ID.String())
	})
}

func TestInverse(t *testing.T) {
	ctx := context.Background()

	t.Run("Should undo the relational backfill", func(t *testing.T) {
		f := setupCoordinator(t)
		residentID, principalID := seedLegacyData(t, f)

		for range 2 {
			_, err := f.coordinator.Step(ctx)
			require.NoError(t, err)
		}

		err := f.coordinator.InverseBackfill(ctx)
		require.NoError(t, err)

		resident := &model.Resident{}
		found, err := f.repo.First(ctx, resident, *repo.NewQuery().Where(repo.IDField, residentID))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uuid.Nil, resident.OrganizationID)

		membershipCount, err := f.repo.Count(ctx, &model.Membership{}, *repo.NewQuery().
			Where(repo.PrincipalIDField, principalID),
		)
		require.NoError(t, err)
		assert.Zero(t, membershipCount)

		orgCount, err := f.repo.Count(ctx, &model.Organization{}, *repo.NewQuery())
		require.NoError(t, err)
		assert.Zero(t, orgCount)
	})

	t.Run("Should undo the blob path migration", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		for range 5 {
			_, err := f.coordinator.Step(ctx)
			require.NoError(t, err)
		}

		err := f.coordinator.InverseBlobPaths(ctx)
		require.NoError(t, err)

		document := &model.Document{}
		found, err := f.repo.First(ctx, document, *repo.NewQuery())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "uploads/care-plan.pdf", document.BlobPath)

		_, err = f.blobs.Stat(ctx, "uploads/care-plan.pdf")
		assert.NoError(t, err)
	})

	t.Run("Should refuse inverses past the point of no return", func(t *testing.T) {
		f := setupCoordinator(t)
		seedLegacyData(t, f)

		require.NoError(t, f.coordinator.Run(ctx))

		assert.ErrorIs(t, f.coordinator.InverseBackfill(ctx), migration.ErrPastPointOfNoReturn)
		assert.ErrorIs(t, f.coordinator.InversePrepareSchema(ctx), migration.ErrPastPointOfNoReturn)
		assert.ErrorIs(t, f.coordinator.InverseBackfillDocuments(ctx), migration.ErrPastPointOfNoReturn)
		assert.ErrorIs(t, f.coordinator.InverseBlobPaths(ctx), migration.ErrPastPointOfNoReturn)
	})
}

func TestNextTransition(t *testing.T) {
	t.Run("Should walk the machine in order", func(t *testing.T) {
		order := []model.MigrationState{
			model.StateNotStarted,
			model.StateSchemaPrepared,
			model.StateBackfilling,
			model.StateBackfillVerified,
			model.StateDocumentStoreBackfilled,
			model.StateBlobPathsMigrated,
			model.StateConstraintsTightened,
			model.StateLegacyRolesRetired,
		}

		for _, state := range order {
			_, ok := migration.NextTransition(state)
			assert.True(t, ok, "%s", state)
		}

		_, ok := migration.NextTransition(model.StateComplete)
		assert.False(t, ok)
	})
}
