package platform

import (
	"github.com/aretw0/productbaker/pkg/adapters/instrument"
	"github.com/aretw0/productbaker/pkg/core"
)

// New creates a Store on the backend selected by opts.
//
//	store, err := productbaker.New("./data", productbaker.WithAdapter("fs"))
//
// The uri argument is adapter-specific: a directory for sqlite and fs, a
// namespace for redis. Nothing is opened until the first operation.
func New(uri string, opts ...Option) (*core.Store, error) {
	o := applyOptions(opts)

	backend, err := initBackend(uri, o)
	if err != nil {
		return nil, err
	}

	if o.registerer != nil {
		metrics, err := instrument.NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		backend = instrument.Wrap(backend, metrics)
	}

	return core.NewStore(backend, o.store), nil
}

// Init builds the backend selected by opts without wrapping it in a Store.
func Init(uri string, opts ...Option) (core.Backend, error) {
	return initBackend(uri, applyOptions(opts))
}
