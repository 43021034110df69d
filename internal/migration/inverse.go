package migration

import (
	"context"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/utils/blobpath"
)

// Inverses exist for every step before constraints are tightened and are
// meant to run against a restored backup, not a live system. After the
// tighten step there is no forward inverse: absence of a tenant id is
// impossible by construction, so rollback means restoring from backup.

func stateIndex(state model.MigrationState) int {
	for i, s := range steps {
		if s.target == state {
			return i + 1
		}
	}

	return 0
}

func (c *Coordinator) guardInverse(ctx context.Context) (*model.MigrationRun, error) {
	run, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}

	if stateIndex(run.State) >= stateIndex(model.StateConstraintsTightened) {
		return nil, ErrPastPointOfNoReturn
	}

	return run, nil
}

// InversePrepareSchema drops the tenant id columns again.
func (c *Coordinator) InversePrepareSchema(ctx context.Context) error {
	_, err := c.guardInverse(ctx)
	if err != nil {
		return err
	}

	return c.migrator.MigrateDownTo(ctx, c.cfg.Migration.PrepareVersion-1)
}

// InverseBackfill clears the root organization's tags from every relational
// row and removes the derived memberships and the root organization itself.
func (c *Coordinator) InverseBackfill(ctx context.Context) error {
	run, err := c.guardInverse(ctx)
	if err != nil {
		return err
	}

	if run.RootOrgID == uuid.Nil {
		return ErrRootOrgMissing
	}

	rootOrg := run.RootOrgID
	batch := c.cfg.Migration.BatchSize

	err = untagRows(ctx, c.repo, batch, rootOrg, func(r *model.Resident) { r.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	err = untagRows(ctx, c.repo, batch, rootOrg, func(h *model.Home) { h.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	err = untagRows(ctx, c.repo, batch, rootOrg, func(a *model.HomeAssignment) { a.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	err = untagRows(ctx, c.repo, batch, rootOrg, func(l *model.CareLog) { l.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	err = untagRows(ctx, c.repo, batch, rootOrg, func(d *model.Document) { d.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	err = untagRows(ctx, c.repo, batch, rootOrg, func(i *model.IncidentReport) { i.OrganizationID = uuid.Nil })
	if err != nil {
		return err
	}

	_, err = c.repo.Delete(ctx, &model.Membership{}, *repo.NewQuery().
		Where(repo.OrganizationIDField, rootOrg),
	)
	if err != nil {
		return err
	}

	_, err = c.repo.Delete(ctx, &model.Organization{}, *repo.NewQuery().
		Where(repo.IDField, rootOrg),
	)
	if err != nil {
		return err
	}

	run.RootOrgID = uuid.Nil

	// Set writes zero valued fields too, which Patch would skip.
	return c.repo.Set(ctx, run)
}

// InverseBackfillDocuments removes the tenant tag from every document store
// record of the root organization.
func (c *Coordinator) InverseBackfillDocuments(ctx context.Context) error {
	run, err := c.guardInverse(ctx)
	if err != nil {
		return err
	}

	if run.RootOrgID == uuid.Nil {
		return ErrRootOrgMissing
	}

	records, err := c.documents.ListByTenant(ctx, run.RootOrgID)
	if err != nil {
		return err
	}

	for _, record := range records {
		err = c.documents.Untag(ctx, record.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

// InverseBlobPaths moves every blob back to its pre-tenancy flat key and
// rewrites the stored paths.
func (c *Coordinator) InverseBlobPaths(ctx context.Context) error {
	_, err := c.guardInverse(ctx)
	if err != nil {
		return err
	}

	retrier := c.retrier()

	return repo.ProcessInBatch(ctx, c.repo, repo.NewQuery(), c.cfg.Migration.BatchSize,
		func(documents []*model.Document) error {
			for _, document := range documents {
				orgID, err := blobpath.OrganizationFromPath(document.BlobPath)
				if err != nil {
					// Already flat.
					continue
				}

				prefix, err := blobpath.TenantPrefix(orgID)
				if err != nil {
					return err
				}

				flatPath := document.BlobPath[len(prefix):]

				err = retrier.Do(func() error {
					return c.moveBlob(ctx, document.BlobPath, flatPath)
				})
				if err != nil {
					return err
				}

				document.BlobPath = flatPath

				_, err = c.repo.Patch(ctx, document, *repo.NewQuery())
				if err != nil {
					return err
				}
			}

			return nil
		})
}

// untagRows is the inverse of tagRows, clearing the organization id from
// rows tagged with the given organization.
func untagRows[T any, PT tenantResource[T]](
	ctx context.Context,
	r repo.Repo,
	batchSize int,
	orgID uuid.UUID,
	untag func(*T),
) error {
	for {
		var rows []PT

		_, err := r.List(ctx, PT(new(T)), &rows, *repo.NewQuery().
			Where(repo.OrganizationIDField, orgID).
			SetLimit(batchSize),
		)
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			untag((*T)(row))

			// Set writes zero valued fields too, which Patch would skip.
			err = r.Set(ctx, row)
			if err != nil {
				return err
			}
		}
	}
}
