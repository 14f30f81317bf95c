// Package taskgroup fans independent units of work out in parallel and
// collects one outcome per unit. A failing unit never cancels its siblings.
package taskgroup

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one unit. When Err is set, Value is the zero value
// and the unit is considered recovered-empty.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

func (o Outcome[T]) Recovered() bool {
	return o.Err != nil
}

// Collect runs fn for every item with at most limit units in flight
// (limit <= 0 means unbounded) and returns outcomes in input order.
func Collect[I any, T any](ctx context.Context, items []I, limit int, fn func(ctx context.Context, item I) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(items))
	if len(items) == 0 {
		return outcomes
	}
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for i, item := range items {
		group.Go(func() error {
			outcomes[i] = run(groupCtx, i, item, fn)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

func run[I any, T any](ctx context.Context, index int, item I, fn func(ctx context.Context, item I) (T, error)) (outcome Outcome[T]) {
	outcome.Index = index
	defer func() {
		if r := recover(); r != nil {
			var zero T
			outcome.Value = zero
			outcome.Err = fmt.Errorf("task %d panicked: %v", index, r)
		}
	}()
	value, err := fn(ctx, item)
	if err != nil {
		return Outcome[T]{Index: index, Err: err}
	}
	return Outcome[T]{Index: index, Value: value}
}
