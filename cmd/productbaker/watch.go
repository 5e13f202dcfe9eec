package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	storesource "github.com/aretw0/productbaker/pkg/adapters/lifecycle"
)

var watchCmd = &cobra.Command{
	Use:   "watch [pattern]",
	Short: "Print store changes as they happen",
	Long: `Print store changes for keys matching a glob pattern (default "*")
until interrupted. Changes made by other processes are seen with the fs
adapter; other adapters report changes made by this process only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchStore(ctx, cmd, storesource.NewSource(store, pattern))
	},
}

func watchStore(ctx context.Context, cmd *cobra.Command, source lifecycle.Source) error {
	if err := source.Start(ctx); err != nil {
		return err
	}
	for e := range source.Events() {
		fmt.Fprintln(cmd.OutOrStdout(), e.String())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
