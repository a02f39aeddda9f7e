package cmd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/observability"
)

// newCaptureCmd creates the `capture` command.
func newCaptureCmd() *cobra.Command {
	var outPath, region string

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Saves a screenshot of the display, or of a region of it, as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			var rect image.Rectangle
			if region != "" {
				if rect, err = parseRegion(region); err != nil {
					return err
				}
			}

			comps := &components{logger: logger}
			defer comps.Shutdown()
			if err := comps.openDisplay(ctx, cfg); err != nil {
				return err
			}

			var frame capture.Frame
			if region == "" {
				frame, err = comps.Capturer.CaptureFull(ctx)
			} else {
				frame, err = comps.Capturer.CaptureRegion(ctx, rect.Min.Add(rect.Size().Div(2)), rect.Size())
			}
			if err != nil {
				return fmt.Errorf("capture failed: %w", err)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			if err := png.Encode(f, frame.Image); err != nil {
				f.Close()
				return fmt.Errorf("encoding %s: %w", outPath, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			logger.Info("Screenshot saved.", zap.String("path", outPath), zap.Stringer("rect", frame.ScreenRect()))
			fmt.Fprintf(cmd.OutOrStdout(), "saved %v to %s\n", frame.ScreenRect(), outPath)
			return nil
		},
	}

	captureCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output PNG path.")
	captureCmd.Flags().StringVar(&region, "region", "", "Region as x,y,w,h in screen pixels.")
	captureCmd.Flags().String("display", "", "Display backend: browser or image. (Overrides config/env)")
	captureCmd.Flags().String("image", "", "Screenshot used by the image backend.")
	captureCmd.Flags().String("url", "", "Page the browser backend opens. (Overrides config/env)")
	_ = captureCmd.MarkFlagRequired("out")

	return captureCmd
}

// parseRegion reads "x,y,w,h".
func parseRegion(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid region %q: origin must be non-negative and size positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
