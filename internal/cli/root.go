// Package cli implements the garita command line: the server itself plus a
// few operator commands that work directly against the configured store.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/garita/internal/config"
)

// RootOptions holds global flags for all commands. Non-empty values override
// the matching GARITA_* environment settings.
type RootOptions struct {
	EnvFile string
	Addr    string
	Store   string
	DBPath  string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the garita CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "garita",
		Short:         "garita - facility access-control logbook",
		Long:          "Records gate and internal-zone movements of a mine site and keeps the zone ledger consistent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides GARITA_HTTP_ADDR)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "storage backend: memory|sqlite|postgres (overrides GARITA_STORE)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database path (overrides GARITA_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewZoneCommand(opts))
	cmd.AddCommand(NewPointsCommand(opts))

	return cmd
}

// loadConfig reads the environment (after the dotenv file) and applies the
// flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	var files []string
	if opts.EnvFile != "" {
		files = append(files, opts.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
