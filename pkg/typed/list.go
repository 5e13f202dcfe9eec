package typed

import (
	"context"
	"fmt"
)

// List is a typed view of a key holding a JSON array.
//
// Mutations are load-modify-save without locking: concurrent writers race
// and the last save wins.
type List[T any] struct {
	value *Value[[]T]
}

// NewList binds a List to key.
func NewList[T any](store Storage, key string) *List[T] {
	return &List[T]{value: NewValue[[]T](store, key)}
}

// Key returns the bound key.
func (l *List[T]) Key() string {
	return l.value.Key()
}

// All returns the items, or an empty slice when the key is absent.
func (l *List[T]) All(ctx context.Context) ([]T, error) {
	items, _, err := l.value.Get(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Replace stores items as the whole list.
func (l *List[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return l.value.Set(ctx, items)
}

// Append adds items to the end of the list.
func (l *List[T]) Append(ctx context.Context, items ...T) error {
	return l.Update(ctx, func(current []T) ([]T, error) {
		return append(current, items...), nil
	})
}

// Update loads the list, applies fn and saves the result. Nothing is
// saved when fn fails.
func (l *List[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	items, err := l.All(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	return l.Replace(ctx, updated)
}

// Find returns the first item matching pred.
func (l *List[T]) Find(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := l.All(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if pred(item) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// RemoveWhere deletes every item matching pred and reports how many were
// removed. Nothing is written when no item matches.
func (l *List[T]) RemoveWhere(ctx context.Context, pred func(T) bool) (int, error) {
	items, err := l.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to remove items from %s: %w", l.Key(), err)
	}
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if !pred(item) {
			kept = append(kept, item)
		}
	}
	removed := len(items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := l.Replace(ctx, kept); err != nil {
		return 0, fmt.Errorf("failed to remove items from %s: %w", l.Key(), err)
	}
	return removed, nil
}
