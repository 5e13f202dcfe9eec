// Package typed provides schema-driven access to store keys.
//
// Documents are decoded into Go types with encoding/json, so time.Time
// fields are restored because of their type and free-text fields are never
// mistaken for dates.
package typed

import (
	"context"
	"fmt"

	"github.com/aretw0/productbaker/pkg/core"
)

// Storage is the subset of *core.Store the typed views need.
type Storage interface {
	Save(ctx context.Context, key string, value any) error
	LoadInto(ctx context.Context, key string, dst any) (bool, error)
	Remove(ctx context.Context, key string) error
	Watch(ctx context.Context, pattern string) (<-chan core.Event, error)
}

// Value is a typed view of a single key.
type Value[T any] struct {
	store Storage
	key   string
}

// NewValue binds a Value to key.
func NewValue[T any](store Storage, key string) *Value[T] {
	return &Value[T]{store: store, key: key}
}

// Key returns the bound key.
func (v *Value[T]) Key() string {
	return v.key
}

// Get returns the stored value. The bool is false, and T its zero value,
// when the key is absent.
func (v *Value[T]) Get(ctx context.Context) (T, bool, error) {
	var out T
	found, err := v.store.LoadInto(ctx, v.key, &out)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("failed to load %s: %w", v.key, err)
	}
	return out, found, nil
}

// GetOr returns the stored value or def when the key is absent.
func (v *Value[T]) GetOr(ctx context.Context, def T) (T, error) {
	out, found, err := v.Get(ctx)
	if err != nil || !found {
		return def, err
	}
	return out, nil
}

// Set replaces the stored value.
func (v *Value[T]) Set(ctx context.Context, value T) error {
	if err := v.store.Save(ctx, v.key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", v.key, err)
	}
	return nil
}

// Delete removes the key.
func (v *Value[T]) Delete(ctx context.Context) error {
	if err := v.store.Remove(ctx, v.key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", v.key, err)
	}
	return nil
}

// Watch streams changes to the key until ctx is done.
func (v *Value[T]) Watch(ctx context.Context) (<-chan core.Event, error) {
	return v.store.Watch(ctx, v.key)
}
