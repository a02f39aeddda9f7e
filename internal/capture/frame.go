// Package capture produces immutable screen frames, either of the whole screen
// or of a region kept fully on-screen around a centre point.
package capture

import (
	"image"
)

// Frame is a captured image plus where it sits on the full screen.
// Origin is (0,0) for full-screen captures and the region's top-left corner
// for region captures. A Frame must not be modified after capture.
type Frame struct {
	Image  *image.RGBA
	Origin image.Point
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Size returns the frame dimensions as a point.
func (f Frame) Size() image.Point {
	return image.Pt(f.Width(), f.Height())
}

// ScreenRect returns the rectangle the frame covers in full-screen coordinates.
func (f Frame) ScreenRect() image.Rectangle {
	return image.Rectangle{Min: f.Origin, Max: f.Origin.Add(f.Size())}
}

// IsFullScreen reports whether the frame was captured at the screen origin
// and covers the whole of a screen with the given size.
func (f Frame) IsFullScreen(screen image.Point) bool {
	return f.Origin == (image.Point{}) && f.Size() == screen
}

// normalize copies img into a fresh RGBA buffer whose bounds start at (0,0),
// so pixel offsets are the same for every frame regardless of backend.
func normalize(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
