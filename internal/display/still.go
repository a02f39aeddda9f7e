package display

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/humanoid"
)

// Still is a screen backed by a fixed image. Pointer events are recorded
// instead of delivered and sleeps return immediately, which makes it the
// backend for dry runs.
type Still struct {
	logger *zap.Logger

	mu      sync.Mutex
	img     *image.RGBA
	pointer image.Point
	clicks  []image.Point
}

// NewStill wraps img. The pointer starts at the centre.
func NewStill(img image.Image, logger *zap.Logger) *Still {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &Still{
		logger:  logger.Named("display.still"),
		img:     rgba,
		pointer: image.Pt(b.Dx()/2, b.Dy()/2),
	}
}

// LoadStill reads a PNG screenshot from path.
func LoadStill(path string, logger *zap.Logger) (*Still, error) {
	if path == "" {
		return nil, fmt.Errorf("image display needs an image path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening screen image: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding screen image %s: %w", path, err)
	}
	return NewStill(img, logger), nil
}

func (s *Still) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Bounds().Size()
}

// Grab returns a copy of r.
func (s *Still) Grab(ctx context.Context, r image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.In(s.img.Bounds()) {
		return nil, fmt.Errorf("rectangle %v outside screen %v", r, s.img.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), s.img, r.Min, draw.Src)
	return out, nil
}

// Replace swaps the displayed image, for example to simulate the screen
// reacting to a click.
func (s *Still) Replace(img image.Image) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	s.mu.Lock()
	s.img = rgba
	s.mu.Unlock()
}

func (s *Still) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (s *Still) DispatchMouseEvent(ctx context.Context, data humanoid.MouseEventData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := humanoid.Vector2D{X: data.X, Y: data.Y}.Point()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointer = p
	if data.Type == humanoid.MousePress {
		s.clicks = append(s.clicks, p)
		s.logger.Info("Click recorded.", zap.Int("x", p.X), zap.Int("y", p.Y))
	}
	return nil
}

func (s *Still) PointerPosition() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer
}

// Clicks returns the points where the button was pressed.
func (s *Still) Clicks() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Point(nil), s.clicks...)
}

func (s *Still) Close() error { return nil }
