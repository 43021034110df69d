package sql

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/repo"
)

// see https://www.postgresql.org/docs/14/errcodes-appendix.html
const pgUniqueViolationErrCode = "23505"

var ErrUnsupportedOrderDirective = errors.New("unsupported order directive")

// Repository is the gorm-backed implementation of repo.Repo.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a Resource.
func (r *Repository) Create(ctx context.Context, resource repo.Resource) error {
	err := r.db.WithContext(ctx).Create(resource).Error
	if err != nil {
		log.Error(ctx, "error creating resource", err)

		if isUniqueViolation(err) {
			return errs.Wrap(repo.ErrUniqueConstraint, err)
		}

		return errs.Wrap(repo.ErrCreateResource, err)
	}

	return nil
}

// List retrieves records matching the query into result, which must be a
// pointer to a slice. Returns the total count ignoring pagination.
func (r *Repository) List(
	ctx context.Context,
	resource repo.Resource,
	result any,
	query repo.Query,
) (int, error) {
	var count int64

	db, err := applyConditions(r.db.WithContext(ctx).Table(resource.TableName()), query)
	if err != nil {
		return 0, err
	}

	res := db.Count(&count)
	if res.Error != nil {
		return 0, errs.Wrap(repo.ErrGetResource, res.Error)
	}

	for _, order := range query.OrderFields {
		switch order.Direction {
		case repo.Desc:
			db = db.Order(string(order.Field) + " desc")
		case repo.Asc:
			db = db.Order(string(order.Field) + " asc")
		default:
			return 0, ErrUnsupportedOrderDirective
		}
	}

	res = applyPagination(db, query).Find(result)
	if res.Error != nil {
		return 0, errs.Wrap(repo.ErrGetResource, res.Error)
	}

	return int(count), nil
}

// First loads the first record matching the query into resource. Returns
// false without error when nothing matches.
func (r *Repository) First(
	ctx context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	db, err := applyConditions(r.db.WithContext(ctx), query)
	if err != nil {
		return false, err
	}

	res := db.First(resource)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, errs.Wrap(repo.ErrGetResource, res.Error)
	}

	return true, nil
}

// Count returns the number of records that match the given query.
func (r *Repository) Count(
	ctx context.Context,
	resource repo.Resource,
	query repo.Query,
) (int, error) {
	var count int64

	db, err := applyConditions(r.db.WithContext(ctx).Table(resource.TableName()), query)
	if err != nil {
		return 0, err
	}

	res := db.Count(&count)
	if res.Error != nil {
		return 0, errs.Wrap(repo.ErrGetResource, res.Error)
	}

	return int(count), nil
}

// Patch updates the resource, using its primary key plus any query
// conditions as the where clause.
func (r *Repository) Patch(
	ctx context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	db, err := applyConditions(r.db.WithContext(ctx).Model(resource), query)
	if err != nil {
		return false, err
	}

	res := db.Updates(resource)
	if res.Error != nil {
		log.Error(ctx, "error patching resource", res.Error)
		return false, errs.Wrap(repo.ErrUpdateResource, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// Set creates the resource or replaces it if it already exists.
func (r *Repository) Set(ctx context.Context, resource repo.Resource) error {
	err := r.db.WithContext(ctx).Save(resource).Error
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(repo.ErrUniqueConstraint, err)
		}

		return errs.Wrap(repo.ErrUpdateResource, err)
	}

	return nil
}

// Delete removes matching records. Returns true if anything was deleted.
func (r *Repository) Delete(
	ctx context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	db, err := applyConditions(r.db.WithContext(ctx), query)
	if err != nil {
		return false, err
	}

	res := db.Delete(resource)
	if res.Error != nil {
		log.Error(ctx, "error deleting resource", res.Error)
		return false, errs.Wrap(repo.ErrDeleteResource, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// Transaction runs txFunc inside a database transaction, handing it a Repo
// bound to the transaction connection.
func (r *Repository) Transaction(ctx context.Context, txFunc repo.TransactionFunc) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return txFunc(ctx, NewRepository(tx))
	})
	if err != nil {
		return errs.Wrap(repo.ErrTransaction, err)
	}

	return nil
}

func applyConditions(db *gorm.DB, query repo.Query) (*gorm.DB, error) {
	for _, cond := range query.Conditions {
		switch cond.Op {
		case repo.Equal:
			// A slice value compares with IN, per the Query.Where contract.
			if isSlice(cond.Value) {
				db = db.Where(fmt.Sprintf("%s IN ?", cond.Field), cond.Value)
			} else {
				db = db.Where(fmt.Sprintf("%s = ?", cond.Field), cond.Value)
			}
		case repo.NotEqual:
			db = db.Where(fmt.Sprintf("%s != ?", cond.Field), cond.Value)
		case repo.In:
			db = db.Where(fmt.Sprintf("%s IN ?", cond.Field), cond.Value)
		case repo.IsNull:
			if cond.Value != nil {
				db = db.Where(fmt.Sprintf("%s IS NULL OR %s = ?", cond.Field, cond.Field), cond.Value)
			} else {
				db = db.Where(fmt.Sprintf("%s IS NULL", cond.Field))
			}
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", repo.ErrGetResource, cond.Op)
		}
	}

	return db, nil
}

// isSlice reports whether the condition value is a multi-value list. Byte
// slices are scalars, and so are arrays like uuid.UUID.
func isSlice(value any) bool {
	if value == nil {
		return false
	}

	t := reflect.TypeOf(value)

	return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
}

func applyPagination(db *gorm.DB, query repo.Query) *gorm.DB {
	limit := query.Limit()
	if limit > 0 {
		db = db.Limit(limit)
	}

	if query.Offset() > 0 {
		db = db.Offset(query.Offset())
	}

	return db
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationErrCode
	}

	return false
}
