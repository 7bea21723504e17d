package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/garita/internal/config"
	dbpkg "github.com/BrandonDHaskell/garita/internal/db"
	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
)

// NewSeedCommand creates the seed command, which loads dev fixtures into a
// sqlite database.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var guards []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert development fixtures into the sqlite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Store != config.StoreSQLite {
				return NewExitError(ExitCommandError, fmt.Sprintf("seed: only the sqlite store can be seeded, got %q", cfg.Store))
			}
			if cfg.Env == "prod" {
				return NewExitError(ExitCommandError, "seed: refusing to seed a prod database")
			}

			ctx := cmd.Context()
			st, err := openStorage(ctx, cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "seed", err)
			}
			defer st.close()

			if _, err := catalog.New(ctx, catalogSource(cfg), catalog.WithOnLoad(st.syncPoints)); err != nil {
				return WrapExitError(ExitCommandError, "sync control points", err)
			}
			if err := dbpkg.SeedDev(ctx, st.db, dbpkg.SeedDevOptions{Guards: guards}); err != nil {
				return WrapExitError(ExitFailure, "seed", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{"db": cfg.DBPath, "guards": len(guards)}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "seeded %s\n", cfg.DBPath)
				return err
			})
		},
	}

	cmd.Flags().StringSliceVar(&guards, "guard", nil, "DNI to register as guard staff (repeatable)")
	return cmd
}
