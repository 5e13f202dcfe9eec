package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	getRaw    bool
	setString bool
	clearYes  bool
)

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the document stored at a key",
	Long:  `Print the document stored at a key as indented JSON. Date strings are revived unless --raw is set, which prints the stored bytes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if getRaw {
			data, err := store.LoadRaw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		value, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if value == nil {
			return fmt.Errorf("key %q not found", args[0])
		}
		return printJSON(cmd.OutOrStdout(), value)
	},
}

var setCmd = &cobra.Command{
	Use:   "set [key] [json|-]",
	Short: "Store a JSON document at a key",
	Long:  `Store a JSON document at a key, replacing any previous value. Use "-" to read the document from stdin and --string to store the argument as a plain string.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, input := args[0], args[1]
		if input == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("error reading stdin: %w", err)
			}
			input = strings.TrimSpace(string(data))
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if setString {
			return store.Save(cmd.Context(), key, input)
		}
		if !json.Valid([]byte(input)) {
			return fmt.Errorf("value is not valid JSON (use --string for plain text)")
		}
		return store.SaveRaw(cmd.Context(), key, json.RawMessage(input))
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [key]",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Remove(cmd.Context(), args[0])
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear the store without --yes")
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Clear(cmd.Context())
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List stored keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd, rmCmd, clearCmd, keysCmd)
	getCmd.Flags().BoolVar(&getRaw, "raw", false, "Print the stored JSON without date revival")
	setCmd.Flags().BoolVar(&setString, "string", false, "Store the value as a plain string")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm removal of every key")
}
