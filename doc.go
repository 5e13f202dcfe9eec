// Package productbaker is the composition root of the ProductBaker storage
// engine.
//
// It wires the key → JSON document store (pkg/core) to a storage adapter
// chosen by functional options and exposes the domain managers of
// pkg/catalog. Dates are written as RFC 3339 strings and revived on Load;
// typed access through NewValue and NewList decodes into Go structs.
//
// Adapters:
//
//   - sqlite (default): one database file under <path>/.productbaker.
//   - fs: one JSON or YAML file per key, with change watching.
//   - memory: process-local, for tests.
//   - redis: hashes under a namespace on a shared server.
//
// Usage:
//
//	store, err := productbaker.New("./data", productbaker.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	err = store.Save(ctx, "app_selected_product", "prd-123")
package productbaker
