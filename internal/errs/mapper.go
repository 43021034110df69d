package errs

import (
	"context"
	"errors"

	"github.com/careloop/careloop/utils/ptr"
)

type Error[T any] interface {
	SetContext(m *map[string]any)
	DefaultError() T
}

// ErrorMapper translates internal error chains into an exposed error type
// (API errors at the HTTP boundary, CLI errors in the migrator).
type ErrorMapper[T Error[T]] struct {
	Errors         []ExposedErrors[T]
	PriorityErrors []ExposedErrors[T]
}

type ExposedErrors[T Error[T]] struct {
	InternalErrorChain []error
	ExposedError       T
	ContextGetter      func(error) map[string]any
}

func NewMapper[T Error[T]](errors []ExposedErrors[T], priorityErrors []ExposedErrors[T]) ErrorMapper[T] {
	return ErrorMapper[T]{
		Errors:         errors,
		PriorityErrors: priorityErrors,
	}
}

// Transform picks the best exposed error for internalErr:
// priority matches win, then the mapping whose whole chain is present in the
// error with the most matches, then the default.
func (m *ErrorMapper[T]) Transform(ctx context.Context, internalErr error) T {
	err, ok := m.containsAsPriority(internalErr)
	if ok {
		return err
	}

	result := m.getBestMatches(internalErr)

	if len(result) == 0 {
		err = *new(T)
		return err.DefaultError()
	}

	selected := result[0]

	err = selected.ExposedError
	if selected.ContextGetter != nil {
		err.SetContext(ptr.PointTo(selected.ContextGetter(internalErr)))
	}

	return err
}

func (m *ErrorMapper[T]) containsAsPriority(err error) (T, bool) {
	for _, priorityErrors := range m.PriorityErrors {
		if countMatchingErrors(err, priorityErrors.InternalErrorChain) > 0 {
			return priorityErrors.ExposedError, true
		}
	}

	return *new(T), false
}

func (m *ErrorMapper[T]) getBestMatches(err error) []ExposedErrors[T] {
	minCount := 1

	var result []ExposedErrors[T]

	for _, mErr := range m.Errors {
		count := countMatchingErrors(err, mErr.InternalErrorChain)

		// A mapping only applies when its entire chain is present.
		if len(mErr.InternalErrorChain) > count {
			continue
		}

		if count == minCount {
			result = append(result, mErr)
		} else if count > minCount {
			minCount = count
			result = []ExposedErrors[T]{mErr}
		}
	}

	return result
}

func countMatchingErrors(err error, candidates []error) int {
	matchCount := 0

	for _, candidateErr := range candidates {
		if errors.Is(err, candidateErr) {
			matchCount++
		}
	}

	return matchCount
}
