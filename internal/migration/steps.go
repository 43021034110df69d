package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/blobstore"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/utils/blobpath"
)

// tenantResource constrains the generic table helpers to pointer types the
// repo can load into.
type tenantResource[T any] interface {
	*T
	repo.Resource
}

func (c *Coordinator) prepareSchema(ctx context.Context) error {
	return c.migrator.MigrateTo(ctx, c.cfg.Migration.PrepareVersion)
}

// backfillRelational creates the root organization, stamps its id onto every
// untagged tenant-scoped row and derives memberships from the legacy global
// role table. Each piece skips records that already carry a tenant id, so an
// interrupted run picks up where it stopped.
func (c *Coordinator) backfillRelational(ctx context.Context, run *model.MigrationRun) error {
	rootOrg, err := c.ensureRootOrganization(ctx, run)
	if err != nil {
		return err
	}

	batch := c.cfg.Migration.BatchSize

	err = errors.Join(
		tagRows(ctx, c.repo, batch, func(r *model.Resident) { r.OrganizationID = rootOrg }),
		tagRows(ctx, c.repo, batch, func(h *model.Home) { h.OrganizationID = rootOrg }),
		tagRows(ctx, c.repo, batch, func(a *model.HomeAssignment) { a.OrganizationID = rootOrg }),
		tagRows(ctx, c.repo, batch, func(l *model.CareLog) { l.OrganizationID = rootOrg }),
		tagRows(ctx, c.repo, batch, func(d *model.Document) { d.OrganizationID = rootOrg }),
		tagRows(ctx, c.repo, batch, func(i *model.IncidentReport) { i.OrganizationID = rootOrg }),
	)
	if err != nil {
		return err
	}

	return c.deriveMemberships(ctx, rootOrg)
}

func (c *Coordinator) ensureRootOrganization(ctx context.Context, run *model.MigrationRun) (uuid.UUID, error) {
	if run.RootOrgID != uuid.Nil {
		return run.RootOrgID, nil
	}

	org := &model.Organization{}

	found, err := c.repo.First(ctx, org, *repo.NewQuery().
		Where(repo.NameField, c.cfg.Migration.RootOrgName),
	)
	if err != nil {
		return uuid.Nil, err
	}

	if !found {
		org = &model.Organization{
			ID:     uuid.New(),
			Name:   c.cfg.Migration.RootOrgName,
			Active: true,
		}

		err = c.repo.Create(ctx, org)
		if err != nil {
			return uuid.Nil, err
		}
	}

	run.RootOrgID = org.ID

	_, err = c.repo.Patch(ctx, run, *repo.NewQuery())
	if err != nil {
		return uuid.Nil, err
	}

	return org.ID, nil
}

// deriveMemberships turns each legacy global role row into an organization
// membership on the root tenant. Legacy roles outside the closed mapping
// abort the step; silently inventing a role would be worse than stopping.
func (c *Coordinator) deriveMemberships(ctx context.Context, rootOrg uuid.UUID) error {
	return repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(legacyRoles []*model.LegacyRole) error {
			for _, legacy := range legacyRoles {
				role, ok := model.LegacyRoleMapping[legacy.Role]
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnknownLegacyRole, legacy.Role)
				}

				existing := &model.Membership{}

				found, err := c.repo.First(ctx, existing, *repo.NewQuery().
					Where(repo.PrincipalIDField, legacy.PrincipalID).
					Where(repo.OrganizationIDField, rootOrg).
					Where(repo.ActiveField, true),
				)
				if err != nil {
					return err
				}

				if found {
					continue
				}

				err = c.repo.Create(ctx, &model.Membership{
					ID:             uuid.New(),
					PrincipalID:    legacy.PrincipalID,
					OrganizationID: rootOrg,
					Role:           role,
					JoinedAt:       legacy.GrantedAt,
					Active:         true,
				})
				if err != nil {
					return err
				}
			}

			return nil
		})
}

// verifyBackfill checks full tenant coverage of the relational store plus
// referential integrity of parent scoped rows. Any gap blocks with the
// offending identifiers.
func (c *Coordinator) verifyBackfill(ctx context.Context) error {
	var blocked []error

	checks := []func(context.Context) (*BlockedError, error){
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(r *model.Resident) uuid.UUID { return r.ID })
		},
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(h *model.Home) uuid.UUID { return h.ID })
		},
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(a *model.HomeAssignment) uuid.UUID { return a.ID })
		},
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(l *model.CareLog) uuid.UUID { return l.ID })
		},
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(d *model.Document) uuid.UUID { return d.ID })
		},
		func(ctx context.Context) (*BlockedError, error) {
			return untaggedCheck(ctx, c.repo, func(i *model.IncidentReport) uuid.UUID { return i.ID })
		},
	}

	for _, check := range checks {
		blockedErr, err := check(ctx)
		if err != nil {
			return err
		}

		if blockedErr != nil {
			c.reportRemaining(blockedErr)
			blocked = append(blocked, blockedErr)
		}
	}

	if len(blocked) > 0 {
		return errors.Join(blocked...)
	}

	err := c.verifyCareLogParents(ctx)
	if err != nil {
		return err
	}

	return c.verifyDocumentParents(ctx)
}

func (c *Coordinator) reportRemaining(blockedErr *BlockedError) {
	metrics.BackfillRemaining.WithLabelValues(blockedErr.Check).Set(float64(blockedErr.Total))
}

// untaggedCheck reports rows of one table still missing a tenant id. A nil
// result means full coverage.
func untaggedCheck[T any, PT tenantResource[T]](
	ctx context.Context,
	r repo.Repo,
	idOf func(*T) uuid.UUID,
) (*BlockedError, error) {
	var rows []PT

	total, err := r.List(ctx, PT(new(T)), &rows, *repo.NewQuery().
		WhereNull(repo.OrganizationIDField, uuid.Nil).
		SetLimit(maxDiagnosticIDs+1),
	)
	if err != nil {
		return nil, err
	}

	if total == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, idOf((*T)(row)).String())
	}

	return &BlockedError{
		Check:      PT(new(T)).TableName(),
		Unmigrated: ids,
		Total:      total,
	}, nil
}

func (c *Coordinator) verifyCareLogParents(ctx context.Context) error {
	return repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(careLogs []*model.CareLog) error {
			for _, careLog := range careLogs {
				resident := &model.Resident{}

				found, err := c.repo.First(ctx, resident, *repo.NewQuery().
					Where(repo.IDField, careLog.ResidentID),
				)
				if err != nil {
					return err
				}

				if !found {
					return fmt.Errorf("%w: care log %s references missing resident %s",
						ErrReferentialIntegrity, careLog.ID, careLog.ResidentID)
				}

				if resident.OrganizationID != careLog.OrganizationID {
					return fmt.Errorf("%w: care log %s organization diverges from resident %s",
						ErrReferentialIntegrity, careLog.ID, resident.ID)
				}
			}

			return nil
		})
}

func (c *Coordinator) verifyDocumentParents(ctx context.Context) error {
	return repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(documents []*model.Document) error {
			for _, document := range documents {
				resident := &model.Resident{}

				found, err := c.repo.First(ctx, resident, *repo.NewQuery().
					Where(repo.IDField, document.ResidentID),
				)
				if err != nil {
					return err
				}

				if !found {
					return fmt.Errorf("%w: document %s references missing resident %s",
						ErrReferentialIntegrity, document.ID, document.ResidentID)
				}
			}

			return nil
		})
}

// backfillDocuments tags every untagged document store record with the root
// organization. Tagging is idempotent, so replaying after a partial failure
// only touches the remainder.
func (c *Coordinator) backfillDocuments(ctx context.Context, run *model.MigrationRun) error {
	if run.RootOrgID == uuid.Nil {
		return ErrRootOrgMissing
	}

	retrier := c.retrier()

	for {
		records, err := c.documents.ListUntagged(ctx, int64(c.cfg.Migration.BatchSize))
		if err != nil {
			return err
		}

		if len(records) == 0 {
			return nil
		}

		for _, record := range records {
			err = retrier.Do(func() error {
				return c.documents.TagTenant(ctx, record.ID, run.RootOrgID)
			})
			if err != nil {
				return err
			}
		}
	}
}

// migrateBlobPaths relocates every blob to its tenant-prefixed key and
// rewrites the stored path in the same pass. Documents already under a
// tenant prefix are skipped; a blob missing at the source but present at the
// destination was moved by an interrupted earlier run.
func (c *Coordinator) migrateBlobPaths(ctx context.Context) error {
	retrier := c.retrier()

	return repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(documents []*model.Document) error {
			for _, document := range documents {
				if blobpath.IsTenantScoped(document.BlobPath) {
					continue
				}

				newPath, err := blobpath.Rebase(document.OrganizationID, document.BlobPath)
				if err != nil {
					return err
				}

				err = retrier.Do(func() error {
					return c.moveBlob(ctx, document.BlobPath, newPath)
				})
				if err != nil {
					return err
				}

				document.BlobPath = newPath

				_, err = c.repo.Patch(ctx, document, *repo.NewQuery())
				if err != nil {
					return err
				}
			}

			return nil
		})
}

func (c *Coordinator) moveBlob(ctx context.Context, src, dst string) error {
	err := c.blobs.Move(ctx, src, dst)
	if err == nil {
		return nil
	}

	if errors.Is(err, blobstore.ErrObjectNotFound) {
		_, statErr := c.blobs.Stat(ctx, dst)
		if statErr == nil {
			log.Debug(ctx, "blob already relocated")
			return nil
		}
	}

	return err
}

// tightenConstraints is the point of no return. All three stores must report
// full coverage independently; any gap blocks the transition with the
// unmigrated identifiers.
func (c *Coordinator) tightenConstraints(ctx context.Context) error {
	err := c.verifyBackfill(ctx)
	if err != nil {
		return err
	}

	err = c.verifyDocumentCoverage(ctx)
	if err != nil {
		return err
	}

	err = c.verifyBlobCoverage(ctx)
	if err != nil {
		return err
	}

	return c.migrator.MigrateTo(ctx, c.cfg.Migration.TightenVersion)
}

func (c *Coordinator) verifyDocumentCoverage(ctx context.Context) error {
	untagged, err := c.documents.ListUntagged(ctx, maxDiagnosticIDs+1)
	if err != nil {
		return err
	}

	if len(untagged) == 0 {
		return nil
	}

	total, err := c.documents.CountUntagged(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(untagged))
	for _, record := range untagged {
		ids = append(ids, record.ID.String())
	}

	return &BlockedError{
		Check:      "document_store",
		Unmigrated: ids,
		Total:      int(total),
	}
}

func (c *Coordinator) verifyBlobCoverage(ctx context.Context) error {
	var stale []string

	err := repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(documents []*model.Document) error {
			for _, document := range documents {
				if !blobpath.IsTenantScoped(document.BlobPath) {
					stale = append(stale, document.BlobPath)
				}
			}

			return nil
		})
	if err != nil {
		return err
	}

	if len(stale) > 0 {
		return &BlockedError{
			Check:      "blob_store",
			Unmigrated: stale,
			Total:      len(stale),
		}
	}

	return nil
}

// retireLegacyRoles drops the superseded global role rows. Memberships are
// the sole role source from here on.
func (c *Coordinator) retireLegacyRoles(ctx context.Context) error {
	_, err := c.repo.Delete(ctx, &model.LegacyRole{}, *repo.NewQuery().
		WhereOp(repo.IDField, repo.NotEqual, uuid.Nil),
	)

	return err
}

// tagRows stamps orgID onto untagged rows of one table, a batch at a time.
// The query always asks for the first page of untagged rows; tagging shrinks
// that set until it is empty.
func tagRows[T any, PT tenantResource[T]](
	ctx context.Context,
	r repo.Repo,
	batchSize int,
	tag func(*T),
) error {
	for {
		var rows []PT

		_, err := r.List(ctx, PT(new(T)), &rows, *repo.NewQuery().
			WhereNull(repo.OrganizationIDField, uuid.Nil).
			SetLimit(batchSize),
		)
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			tag((*T)(row))

			_, err = r.Patch(ctx, row, *repo.NewQuery())
			if err != nil {
				return err
			}
		}
	}
}
