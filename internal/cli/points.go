package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/types"
)

// NewPointsCommand creates the points command. It loads the catalog without
// touching the store, so it doubles as a check of a catalog file.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "points",
		Short: "List the control-point catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if file != "" {
				cfg.ControlPointsPath = file
			}

			cat, err := catalog.New(cmd.Context(), catalogSource(cfg))
			if err != nil {
				return WrapExitError(ExitFailure, "load control points", err)
			}

			list := types.ControlPointList{}
			for _, p := range cat.Snapshot().All() {
				list.ControlPoints = append(list.ControlPoints, pointJSON(p))
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(list, func(w io.Writer) error { return printPoints(w, list.ControlPoints) })
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file (overrides GARITA_CONTROL_POINTS)")
	return cmd
}

func pointJSON(p model.ControlPoint) types.ControlPoint {
	return types.ControlPoint{
		ID:            int(p.ID),
		Name:          p.Name,
		Kind:          string(p.Kind),
		TrackPresence: p.TrackPresence,
		Priority:      p.Priority,
	}
}

func printPoints(w io.Writer, points []types.ControlPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tTRACKED\tPRIORITY")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\n", p.ID, p.Name, p.Kind, p.TrackPresence, p.Priority)
	}
	return tw.Flush()
}
