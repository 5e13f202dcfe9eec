package core

import "context"

// Backend defines the contract of the underlying database.
// Adhering to this interface keeps the Store independent of the
// storage mechanism (SQLite, filesystem, memory, Redis).
//
// Implementations return *StorageError for engine failures so callers can
// branch on Reason, and ErrNotFound from Get when the key is absent.
type Backend interface {
	// Open establishes the connection and creates the record store if it is missing.
	// It is called once per Store lifetime (again after a failed attempt or Close).
	Open(ctx context.Context) error

	// Put writes the record, replacing any record with the same key.
	Put(ctx context.Context, rec Record) error

	// Get retrieves the record stored at key.
	Get(ctx context.Context, key string) (Record, error)

	// Delete removes the record at key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every record.
	Clear(ctx context.Context) error

	// All returns every record.
	All(ctx context.Context) ([]Record, error)

	// Close releases the connection.
	Close() error
}

// Estimate is the platform storage estimate.
type Estimate struct {
	Quota int64
	Usage int64
}

// Estimator is implemented by backends able to report quota and usage.
type Estimator interface {
	Estimate(ctx context.Context) (Estimate, error)
}

// Persister is implemented by backends that distinguish best-effort and
// persistent (durable) storage.
type Persister interface {
	// Persisted reports whether storage is already persistent.
	Persisted(ctx context.Context) (bool, error)
	// Persist asks the engine to make storage persistent and reports the outcome.
	Persist(ctx context.Context) (bool, error)
}

// Batcher is implemented by backends that can write several records in one transaction.
type Batcher interface {
	PutBatch(ctx context.Context, recs []Record) error
}

// Watchable is implemented by backends that observe changes made outside
// the current process.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// Wrapper is implemented by decorators around another Backend.
type Wrapper interface {
	Unwrap() Backend
}

// Capability returns b as T when b supports the optional capability T.
//
// A Wrapper only supports what the backend it wraps supports; when both
// implement T the wrapper is returned so decorations stay in the call path.
func Capability[T any](b Backend) (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	if w, ok := b.(Wrapper); ok {
		inner, ok := Capability[T](w.Unwrap())
		if !ok {
			return zero, false
		}
		if outer, ok := b.(T); ok {
			return outer, true
		}
		return inner, true
	}
	t, ok := b.(T)
	return t, ok
}
