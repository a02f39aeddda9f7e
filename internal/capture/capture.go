package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
)

var (
	// ErrCaptureFailed wraps any failure of the underlying screen source.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrRegionTooLarge is returned when a region does not fit on the screen.
	ErrRegionTooLarge = errors.New("region larger than screen")
)

// Source is the low-level screen primitive a Capturer reads from.
type Source interface {
	// Size returns the full screen dimensions in pixels.
	Size() image.Point
	// Grab returns the pixels inside r, given in full-screen coordinates.
	Grab(ctx context.Context, r image.Rectangle) (image.Image, error)
}

// Capturer produces Frames from a Source.
type Capturer struct {
	src    Source
	logger *zap.Logger
}

// New creates a Capturer over the given source.
func New(src Source, logger *zap.Logger) *Capturer {
	return &Capturer{src: src, logger: logger.Named("capture")}
}

// ScreenSize returns the dimensions of the underlying screen.
func (c *Capturer) ScreenSize() image.Point {
	return c.src.Size()
}

// CaptureFull captures the entire screen. The returned frame has origin (0,0).
func (c *Capturer) CaptureFull(ctx context.Context) (Frame, error) {
	screen := c.src.Size()
	return c.grab(ctx, image.Rectangle{Max: screen})
}

// CaptureRegion captures a size.X by size.Y region centred on center. When the
// naive centring would fall off an edge the rectangle is shifted back on-screen
// without shrinking; the frame's origin is the shifted top-left corner.
func (c *Capturer) CaptureRegion(ctx context.Context, center, size image.Point) (Frame, error) {
	r, err := ClampRegion(center, size, c.src.Size())
	if err != nil {
		return Frame{}, err
	}
	if r.Min != center.Sub(size.Div(2)) {
		c.logger.Debug("Region shifted to stay on-screen.",
			zap.Stringer("center", center),
			zap.Stringer("rect", r))
	}
	return c.grab(ctx, r)
}

func (c *Capturer) grab(ctx context.Context, r image.Rectangle) (Frame, error) {
	img, err := c.src.Grab(ctx, r)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: grabbing %v: %v", ErrCaptureFailed, r, err)
	}
	if img == nil {
		return Frame{}, fmt.Errorf("%w: source returned no image for %v", ErrCaptureFailed, r)
	}
	if got := img.Bounds().Size(); got != r.Size() {
		return Frame{}, fmt.Errorf("%w: source returned %v, want %v", ErrCaptureFailed, got, r.Size())
	}
	return Frame{Image: normalize(img), Origin: r.Min}, nil
}

// ClampRegion returns the on-screen rectangle of the given size centred as
// closely as possible on center. The rectangle is shifted, never shrunk.
func ClampRegion(center, size, screen image.Point) (image.Rectangle, error) {
	if size.X <= 0 || size.Y <= 0 {
		return image.Rectangle{}, fmt.Errorf("capture: invalid region size %v", size)
	}
	if size.X > screen.X || size.Y > screen.Y {
		return image.Rectangle{}, fmt.Errorf("%w: %v exceeds %v", ErrRegionTooLarge, size, screen)
	}
	topLeft := center.Sub(size.Div(2))
	topLeft.X = clampInt(topLeft.X, 0, screen.X-size.X)
	topLeft.Y = clampInt(topLeft.Y, 0, screen.Y-size.Y)
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(size)}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
