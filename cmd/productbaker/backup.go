package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a JSON backup of the application keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		backup, err := store.Backup(cmd.Context())
		if err != nil {
			return err
		}
		if backupOutput == "" || backupOutput == "-" {
			fmt.Fprintln(cmd.OutOrStdout(), backup)
			return nil
		}
		if err := os.WriteFile(backupOutput, []byte(backup+"\n"), 0644); err != nil {
			return fmt.Errorf("error writing backup: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "backup written to %s\n", backupOutput)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file|-]",
	Short: "Restore application keys from a JSON backup",
	Long:  `Restore application keys from a backup produced by "backup". Keys present in the backup are overwritten; other keys are left alone.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("error reading backup: %w", err)
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Restore(cmd.Context(), string(data))
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Write the backup to a file instead of stdout")
}
