package productbaker

import (
	"github.com/aretw0/productbaker/pkg/typed"
)

// Value is a typed view of a single key.
type Value[T any] = typed.Value[T]

// List is a typed view of a key holding a JSON array.
type List[T any] = typed.List[T]

// NewValue binds a typed value to key. Documents are decoded with
// encoding/json, so dates are restored from the field types.
func NewValue[T any](store *Store, key string) *Value[T] {
	return typed.NewValue[T](store, key)
}

// NewList binds a typed list to key.
func NewList[T any](store *Store, key string) *List[T] {
	return typed.NewList[T](store, key)
}
