package cmd

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/calibration"
	"github.com/xkilldash9x/sightclick/internal/observability"
)

// newCalibrateCmd creates the `calibrate` command.
func newCalibrateCmd() *cobra.Command {
	var (
		actualX, actualY int
		dx, dy           int
		reset, show      bool
	)

	calibrateCmd := &cobra.Command{
		Use:   "calibrate [target description]",
		Short: "Measures or sets the pixel offset applied to oracle coordinates",
		Long: `With a target and --actual-x/--actual-y, locates the target with no offset
and stores the difference between where it really is and where the oracle put it.
--dx/--dy store an offset directly, --reset clears it and --show prints it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			out := cmd.OutOrStdout()
			flags := cmd.Flags()

			measure := flags.Changed("actual-x") || flags.Changed("actual-y")
			direct := flags.Changed("dx") || flags.Changed("dy")
			switch {
			case measure && (direct || reset):
				return errors.New("--actual-x/--actual-y cannot be combined with --dx/--dy or --reset")
			case measure && !(flags.Changed("actual-x") && flags.Changed("actual-y")):
				return errors.New("both --actual-x and --actual-y are required")
			case measure && len(args) == 0:
				return errors.New("a target description is required to measure the offset")
			case !measure && !direct && !reset && !show:
				return errors.New("nothing to do: pass a target with --actual-x/--actual-y, --dx/--dy, --reset or --show")
			}

			if measure {
				comps, err := initializeComponents(ctx, cfg, logger)
				defer comps.Shutdown()
				if err != nil {
					return err
				}
				rec, err := comps.Orchestrator.Calibrate(ctx, strings.Join(args, " "), image.Pt(actualX, actualY))
				if err != nil {
					return fmt.Errorf("calibration failed: %w", err)
				}
				printRecord(out, &rec)
				return nil
			}

			comps := &components{logger: logger}
			defer comps.Shutdown()
			if err := comps.openStore(ctx, cfg.Calibration()); err != nil {
				return err
			}

			if reset || direct {
				rec := calibration.Record{UpdatedAt: time.Now().UTC()}
				if direct {
					rec.Offset = calibration.Offset{DX: dx, DY: dy}
				}
				if err := comps.Store.Save(ctx, rec); err != nil {
					return fmt.Errorf("saving calibration: %w", err)
				}
				logger.Info("Calibration offset stored.", zap.Int("dx", rec.DX), zap.Int("dy", rec.DY))
			}

			rec, err := comps.Store.Load(ctx)
			if err != nil {
				return fmt.Errorf("loading calibration: %w", err)
			}
			printRecord(out, rec)
			return nil
		},
	}

	calibrateCmd.Flags().IntVar(&actualX, "actual-x", 0, "True x coordinate of the target in screen pixels.")
	calibrateCmd.Flags().IntVar(&actualY, "actual-y", 0, "True y coordinate of the target in screen pixels.")
	calibrateCmd.Flags().IntVar(&dx, "dx", 0, "Set the x offset directly.")
	calibrateCmd.Flags().IntVar(&dy, "dy", 0, "Set the y offset directly.")
	calibrateCmd.Flags().BoolVar(&reset, "reset", false, "Reset the offset to zero.")
	calibrateCmd.Flags().BoolVar(&show, "show", false, "Print the stored offset.")
	calibrateCmd.MarkFlagsMutuallyExclusive("dx", "reset")
	calibrateCmd.MarkFlagsMutuallyExclusive("dy", "reset")

	return calibrateCmd
}

func printRecord(w io.Writer, rec *calibration.Record) {
	if rec == nil {
		fmt.Fprintln(w, "offset: dx=0 dy=0 (not calibrated)")
		return
	}
	fmt.Fprintf(w, "offset: dx=%d dy=%d\n", rec.DX, rec.DY)
	if rec.Target != "" {
		fmt.Fprintf(w, "measured on %q: observed (%d,%d)\n", rec.Target, rec.ObservedX, rec.ObservedY)
	}
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated: %s\n", rec.UpdatedAt.Format(time.RFC3339))
	}
}
