package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/productbaker"
	"github.com/aretw0/productbaker/pkg/catalog"
)

// openCatalog opens the store and the domain managers over it.
func openCatalog(cmd *cobra.Command) (*productbaker.Store, *catalog.Catalog, error) {
	store, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	return store, productbaker.NewCatalog(store, slog.Default()), nil
}
