package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var persistCheck bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print item count, size and quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var persistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Request persistent storage",
	Long:  `Ask the backend to make storage persistent. With --check, only report the current status.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if persistCheck {
			return printJSON(cmd.OutOrStdout(), store.CheckPersistentStorage(cmd.Context()))
		}
		return printJSON(cmd.OutOrStdout(), store.RequestPersistentStorage(cmd.Context()))
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the store can be opened",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.TestConnection(cmd.Context()) {
			return fmt.Errorf("store is not reachable")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, persistCmd, pingCmd)
	persistCmd.Flags().BoolVar(&persistCheck, "check", false, "Only report the persistence status")
}
