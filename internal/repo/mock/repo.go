package mock

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unicode"

	"github.com/careloop/careloop/internal/repo"
)

var (
	ErrMustPointerToSlice = errors.New("result must be a pointer to a slice")
	ErrMustBeSlice        = errors.New("result must point to a slice")
	ErrItemNotAssignable  = errors.New("item not assignable to result slice")
	ErrNotAStruct         = errors.New("resource must be a struct or pointer to struct")
	ErrUnknownField       = errors.New("unknown query field")
	ErrMissingPrimaryKey  = errors.New("resource has no ID field")
)

// Repository is an in-memory implementation of repo.Repo for unit tests.
// Records are stored as struct copies keyed by table name; query support
// covers the condition operators the production code uses.
type Repository struct {
	mu     sync.RWMutex
	tables map[string][]reflect.Value
}

func NewRepository() *Repository {
	return &Repository{tables: map[string][]reflect.Value{}}
}

func (r *Repository) Create(_ context.Context, resource repo.Resource) error {
	v, err := structValue(resource)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables[resource.TableName()] = append(r.tables[resource.TableName()], copyOf(v))

	return nil
}

func (r *Repository) List(
	_ context.Context,
	resource repo.Resource,
	result any,
	query repo.Query,
) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.match(resource, query)
	if err != nil {
		return 0, err
	}

	total := len(matched)
	matched = paginate(matched, query)

	err = assignList(result, matched)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *Repository) First(
	_ context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.match(resource, query)
	if err != nil {
		return false, err
	}

	if len(matched) == 0 {
		return false, nil
	}

	target := reflect.ValueOf(resource)
	if target.Kind() != reflect.Ptr {
		return false, ErrNotAStruct
	}

	target.Elem().Set(matched[0])

	return true, nil
}

func (r *Repository) Count(
	_ context.Context,
	resource repo.Resource,
	query repo.Query,
) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.match(resource, query)
	if err != nil {
		return 0, err
	}

	return len(matched), nil
}

// Patch replaces the stored record whose ID matches the resource's ID and
// which satisfies any additional query conditions.
func (r *Repository) Patch(
	_ context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	v, err := structValue(resource)
	if err != nil {
		return false, err
	}

	id, ok := fieldByColumn(v, "id")
	if !ok {
		return false, ErrMissingPrimaryKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.tables[resource.TableName()]
	for i, row := range rows {
		rowID, ok := fieldByColumn(row, "id")
		if !ok || !reflect.DeepEqual(rowID.Interface(), id.Interface()) {
			continue
		}

		match, err := matchesConditions(row, query.Conditions)
		if err != nil {
			return false, err
		}

		if match {
			rows[i] = copyOf(v)
			return true, nil
		}
	}

	return false, nil
}

// Set creates the record or replaces it by ID if it already exists.
func (r *Repository) Set(ctx context.Context, resource repo.Resource) error {
	found, err := r.Patch(ctx, resource, repo.Query{})
	if err != nil {
		return err
	}

	if found {
		return nil
	}

	return r.Create(ctx, resource)
}

func (r *Repository) Delete(
	_ context.Context,
	resource repo.Resource,
	query repo.Query,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.tables[resource.TableName()]
	kept := rows[:0:0]
	deleted := false

	for _, row := range rows {
		match, err := matchesConditions(row, query.Conditions)
		if err != nil {
			return false, err
		}

		if match {
			deleted = true
			continue
		}

		kept = append(kept, row)
	}

	r.tables[resource.TableName()] = kept

	return deleted, nil
}

// Transaction runs txFunc against the same store. The mock provides no
// rollback; tests that need failure isolation use fresh repositories.
func (r *Repository) Transaction(ctx context.Context, txFunc repo.TransactionFunc) error {
	return txFunc(ctx, r)
}

func (r *Repository) match(resource repo.Resource, query repo.Query) ([]reflect.Value, error) {
	var matched []reflect.Value

	for _, row := range r.tables[resource.TableName()] {
		ok, err := matchesConditions(row, query.Conditions)
		if err != nil {
			return nil, err
		}

		if ok {
			matched = append(matched, row)
		}
	}

	return matched, nil
}

func paginate(rows []reflect.Value, query repo.Query) []reflect.Value {
	offset := query.Offset()
	if offset >= len(rows) {
		return nil
	}

	rows = rows[offset:]

	limit := query.Limit()
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	return rows
}

func matchesConditions(row reflect.Value, conds []repo.Condition) (bool, error) {
	for _, cond := range conds {
		field, ok := fieldByColumn(row, string(cond.Field))
		if !ok {
			return false, fmt.Errorf("%w: %q on %s", ErrUnknownField, cond.Field, row.Type())
		}

		match := compare(field.Interface(), cond.Value)

		switch cond.Op {
		case repo.Equal, repo.In:
			if !match {
				return false, nil
			}
		case repo.NotEqual:
			if match {
				return false, nil
			}
		case repo.IsNull:
			if !field.IsZero() {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: unsupported operator %q", repo.ErrGetResource, cond.Op)
		}
	}

	return true, nil
}

// compare treats a slice expectation as IN semantics, mirroring the sql
// repository.
func compare(have, want any) bool {
	wv := reflect.ValueOf(want)
	if wv.Kind() == reflect.Slice {
		for i := range wv.Len() {
			if looseEqual(have, wv.Index(i).Interface()) {
				return true
			}
		}

		return false
	}

	return looseEqual(have, want)
}

// looseEqual compares across convertible types, e.g. a model.Role condition
// against a string column.
func looseEqual(have, want any) bool {
	if reflect.DeepEqual(have, want) {
		return true
	}

	hv := reflect.ValueOf(have)
	wv := reflect.ValueOf(want)

	if hv.IsValid() && wv.IsValid() && wv.Type().ConvertibleTo(hv.Type()) {
		return reflect.DeepEqual(have, wv.Convert(hv.Type()).Interface())
	}

	return false
}

func structValue(resource repo.Resource) (reflect.Value, error) {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotAStruct
	}

	return v, nil
}

func copyOf(v reflect.Value) reflect.Value {
	c := reflect.New(v.Type()).Elem()
	c.Set(v)

	return c
}

// fieldByColumn resolves a snake_case column name against struct fields,
// descending into embedded structs the way gorm does.
func fieldByColumn(v reflect.Value, column string) (reflect.Value, bool) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if inner, ok := fieldByColumn(v.Field(i), column); ok {
				return inner, true
			}

			continue
		}

		if toSnake(f.Name) == column {
			return v.Field(i), true
		}
	}

	return reflect.Value{}, false
}

func toSnake(s string) string {
	runes := []rune(s)

	var out []rune

	for i, r := range runes {
		if unicode.IsUpper(r) {
			startsWord := i > 0 && !unicode.IsUpper(runes[i-1])
			endsAcronym := i > 0 && unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && !unicode.IsUpper(runes[i+1])

			if startsWord || endsAcronym {
				out = append(out, '_')
			}

			r = unicode.ToLower(r)
		}

		out = append(out, r)
	}

	return string(out)
}

func assignList(result any, rows []reflect.Value) error {
	resultVal := reflect.ValueOf(result)
	if resultVal.Kind() != reflect.Ptr {
		return ErrMustPointerToSlice
	}

	sliceVal := resultVal.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return ErrMustBeSlice
	}

	elemType := sliceVal.Type().Elem()
	newSlice := reflect.MakeSlice(sliceVal.Type(), 0, len(rows))

	for _, row := range rows {
		item := copyOf(row)

		switch {
		case item.Type().AssignableTo(elemType):
			newSlice = reflect.Append(newSlice, item)
		case item.Addr().Type().AssignableTo(elemType):
			newSlice = reflect.Append(newSlice, item.Addr())
		default:
			return ErrItemNotAssignable
		}
	}

	resultVal.Elem().Set(newSlice)

	return nil
}
