package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/productbaker"
	"github.com/aretw0/productbaker/internal/platform"
)

var (
	verbose  bool
	flagPath string
	adapter  string
	redisURL string
	format   string
	quota    int64
	readOnly bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "productbaker",
	Short: "Inspect and manage a ProductBaker store",
	Long: `productbaker reads and writes the key → JSON document store behind
the ProductBaker catalog: raw keys, backups, quota and persistence, plus
products and backlink outreach.

Settings come from flags or PRODUCTBAKER_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&flagPath, "path", "p", "", "Store directory (default: nearest store root or the working directory)")
	flags.StringVar(&adapter, "adapter", "", "Storage adapter: sqlite, fs, memory or redis")
	flags.StringVar(&redisURL, "redis-url", "", "Redis server URL for the redis adapter")
	flags.StringVar(&format, "format", "", "Record format of the fs adapter: json or yaml")
	flags.Int64Var(&quota, "quota", 0, "Storage quota in bytes (0 = unlimited)")
	flags.BoolVar(&readOnly, "read-only", false, "Reject every write")
}

// loadConfig merges the environment with the flags set on cmd.
func loadConfig(cmd *cobra.Command) (platform.EnvConfig, error) {
	cfg, err := platform.LoadEnvConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.Path = flagPath
	} else if os.Getenv("PRODUCTBAKER_PATH") == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("error getting working directory: %w", err)
		}
		cfg.Path = wd
		if root, err := platform.FindRoot(wd); err == nil {
			cfg.Path = root
		}
	}
	if flags.Changed("adapter") {
		cfg.Adapter = adapter
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = redisURL
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("quota") {
		cfg.Quota = quota
	}
	if flags.Changed("read-only") {
		cfg.ReadOnly = readOnly
	}
	return cfg, cfg.Validate()
}

// openStore creates the store described by the flags and environment.
func openStore(cmd *cobra.Command) (*productbaker.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := append(cfg.Options(), platform.WithLogger(slog.Default()))
	store, err := productbaker.New(cfg.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing store: %w", err)
	}
	return store, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
