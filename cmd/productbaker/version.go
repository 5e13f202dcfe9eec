package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/productbaker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of productbaker",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "productbaker version %s\n", strings.TrimSpace(productbaker.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
