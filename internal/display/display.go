// Package display provides the screens sightclick can see and act on: a
// Chrome viewport driven over CDP and a still image for dry runs.
package display

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/config"
	"github.com/xkilldash9x/sightclick/internal/humanoid"
)

// Display is a screen that can be captured and receives pointer events.
type Display interface {
	capture.Source
	humanoid.Executor
	// PointerPosition returns the last known pointer location.
	PointerPosition() image.Point
	Close() error
}

// Open creates the display selected by cfg.Backend.
func Open(ctx context.Context, cfg config.DisplayConfig, logger *zap.Logger) (Display, error) {
	switch cfg.Backend {
	case config.DisplayBrowser:
		return NewBrowser(ctx, cfg, logger)
	case config.DisplayImage:
		return LoadStill(cfg.ImagePath, logger)
	default:
		return nil, fmt.Errorf("unknown display backend %q", cfg.Backend)
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
