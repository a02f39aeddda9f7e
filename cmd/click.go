package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/sightclick/internal/metrics"
	"github.com/xkilldash9x/sightclick/internal/observability"
	"github.com/xkilldash9x/sightclick/internal/orchestrator"
)

// newClickCmd creates the `click` command.
func newClickCmd() *cobra.Command {
	clickCmd := &cobra.Command{
		Use:   "click <target description>",
		Short: "Finds an on-screen element by description, clicks it and verifies the screen changed",
		Example: `  sightclick click "the blue Submit button"
  sightclick click --dry-run --image screen.png "the search box"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			target := strings.Join(args, " ")

			comps, err := initializeComponents(ctx, cfg, logger)
			defer comps.Shutdown()
			if err != nil {
				return err
			}

			return serveMetrics(ctx, cfg.Metrics().Addr, comps.Metrics, logger, func(ctx context.Context) error {
				outcome := comps.Orchestrator.Run(ctx, target)
				printOutcome(cmd.OutOrStdout(), outcome)
				if !outcome.Success {
					return &outcomeError{outcome: outcome}
				}
				return nil
			})
		},
	}

	clickCmd.Flags().Bool("dry-run", false, "Run against a still image (--image) instead of a live browser.")
	clickCmd.Flags().String("image", "", "Screenshot used by the image backend.")
	clickCmd.Flags().String("display", "", "Display backend: browser or image. (Overrides config/env)")
	clickCmd.Flags().String("url", "", "Page the browser backend opens. (Overrides config/env)")
	clickCmd.Flags().Bool("headless", false, "Run the browser without a window. (Overrides config/env)")
	clickCmd.Flags().String("provider", "", "Oracle provider: gemini or openai. (Overrides config/env)")
	clickCmd.Flags().String("model", "", "Oracle model name. (Overrides config/env)")
	clickCmd.Flags().Float64("threshold", 0, "Minimum percent of pixels that must change. (Overrides config/env)")
	clickCmd.Flags().Duration("settle", 0, "Wait between the click and the verification capture. (Overrides config/env)")
	clickCmd.Flags().Int("region-size", 0, "Side in pixels of the cursor-centred retry region. (Overrides config/env)")
	clickCmd.Flags().StringSlice("strategies", nil, "Ordered capture scopes to try. (Overrides config/env)")
	clickCmd.Flags().Duration("run-timeout", 0, "Upper bound for the whole run. (Overrides config/env)")
	clickCmd.Flags().Bool("narrate", false, "Announce progress. (Overrides config/env)")
	clickCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running.")

	return clickCmd
}

// serveMetrics runs body, serving the recorder on addr until body returns.
// An empty addr runs body alone.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder, logger *zap.Logger, body func(context.Context) error) error {
	if addr == "" {
		return body(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Metrics server started.", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown failed.", zap.Error(err))
			}
		}()
		return body(gctx)
	})
	return g.Wait()
}

func printOutcome(w io.Writer, o orchestrator.Outcome) {
	for _, a := range o.Attempts {
		if a.Found {
			fmt.Fprintf(w, "attempt %d [%s]: clicked %v, %.2f%% changed\n", a.Ordinal, a.Scope, a.Point, a.DiffPercent)
		} else {
			fmt.Fprintf(w, "attempt %d [%s]: target not found\n", a.Ordinal, a.Scope)
		}
	}
	if o.Success {
		fmt.Fprintf(w, "Success (run %s, %s)\n", o.RunID, o.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "Failure: %s (run %s)\n", o.Reason, o.RunID)
}
