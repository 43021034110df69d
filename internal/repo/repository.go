package repo

import (
	"context"
	"errors"
)

// TransactionFunc is func signature for Transaction.
type TransactionFunc func(context.Context, Repo) error

// Repo defines an interface for Repository operations. The repo itself is
// tenant-agnostic; tenant scoping is composed one layer above by the access
// engine, never through ORM-level filter hooks.
type Repo interface {
	Create(ctx context.Context, resource Resource) error
	List(ctx context.Context, resource Resource, result any, query Query) (int, error)
	First(ctx context.Context, resource Resource, query Query) (bool, error)
	Count(ctx context.Context, resource Resource, query Query) (int, error)
	Patch(ctx context.Context, resource Resource, query Query) (bool, error)
	Set(ctx context.Context, resource Resource) error
	Delete(ctx context.Context, resource Resource, query Query) (bool, error)
	Transaction(ctx context.Context, txFunc TransactionFunc) error
}

// Resource defines the interface for persisted entities.
type Resource interface {
	TableName() string
}

const DefaultLimit = 100

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUniqueConstraint = errors.New("unique constraint violation")
	ErrCreateResource   = errors.New("failed to create resource")
	ErrUpdateResource   = errors.New("failed to update resource")
	ErrDeleteResource   = errors.New("failed to delete resource")
	ErrGetResource      = errors.New("failed to get resource")
	ErrTransaction      = errors.New("failed to execute transaction")
)

// ProcessInBatch retrieves and processes records in batches, paginating so
// large datasets never load into memory at once. Processing stops on the
// first error from processFunc.
func ProcessInBatch[T Resource](
	ctx context.Context,
	repo Repo,
	baseQuery *Query,
	batchSize int,
	processFunc func([]*T) error,
) error {
	offset := 0

	for {
		var items []*T

		query := baseQuery.SetLimit(batchSize).SetOffset(offset)

		count, err := repo.List(ctx, *new(T), &items, *query)
		if err != nil {
			return err
		}

		err = processFunc(items)
		if err != nil {
			return err
		}

		offset += batchSize

		if offset >= count {
			break
		}
	}

	return nil
}
