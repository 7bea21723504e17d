package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/service"
	"github.com/BrandonDHaskell/garita/internal/garita/types"
)

// NewZoneCommand creates the zone command, which prints where a person is
// according to the ledger. It only reads.
func NewZoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "zone <dni>",
		Short: "Show whether a person is inside the plant and in which zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStorage(ctx, cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "open store", err)
			}
			defer st.close()

			cat, err := catalog.New(ctx, catalogSource(cfg))
			if err != nil {
				return WrapExitError(ExitCommandError, "load control points", err)
			}
			reg := service.NewRegistrar(st.store, engine.New(cat, engine.Options{}), service.Options{})

			report, err := reg.ResolveZone(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "resolve zone", err)
			}

			res := zoneResponse(report)
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(res, func(w io.Writer) error { return printZone(w, res) })
		},
	}
}

func zoneResponse(r service.ZoneReport) types.ZoneResponse {
	out := types.ZoneResponse{
		DNI:         r.DNI,
		InsidePlant: r.Presence.InsidePlant,
		ServerTime:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if z := r.Presence.Current.Zone; z != nil {
		cp := pointJSON(*z)
		out.Zone = &cp
	}
	if len(r.Presence.Zones) > 1 {
		for _, z := range r.Presence.Zones[1:] {
			out.StaleZones = append(out.StaleZones, pointJSON(z))
		}
	}
	return out
}

func printZone(w io.Writer, z types.ZoneResponse) error {
	where := "outside the plant"
	switch {
	case z.Zone != nil:
		where = fmt.Sprintf("in %s (%d)", z.Zone.Name, z.Zone.ID)
	case z.InsidePlant:
		where = "inside the plant, no tracked zone"
	}
	if _, err := fmt.Fprintf(w, "%s: %s\n", z.DNI, where); err != nil {
		return err
	}
	for _, s := range z.StaleZones {
		if _, err := fmt.Fprintf(w, "  stale: %s (%d)\n", s.Name, s.ID); err != nil {
			return err
		}
	}
	return nil
}
