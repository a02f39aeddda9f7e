package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sightclick/internal/observability"
)

// newPositionCmd creates the `position` command.
func newPositionCmd() *cobra.Command {
	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Prints the pointer position and screen size of the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			comps := &components{logger: observability.GetLogger()}
			defer comps.Shutdown()
			if err := comps.openDisplay(ctx, cfg); err != nil {
				return err
			}

			p := comps.Display.PointerPosition()
			size := comps.Capturer.ScreenSize()
			fmt.Fprintf(cmd.OutOrStdout(), "x=%d y=%d (screen %dx%d)\n", p.X, p.Y, size.X, size.Y)
			return nil
		},
	}
	positionCmd.Flags().String("display", "", "Display backend: browser or image. (Overrides config/env)")
	positionCmd.Flags().String("image", "", "Screenshot used by the image backend.")
	return positionCmd
}
