// Package resolver turns free-text oracle replies into screen coordinates.
//
// A reply is read as a sequence of "key: value" lines. Only the keys x and y
// are recognised (case-insensitive, surrounding space trimmed) and each value
// must parse as a finite float in [0,1]. Any line that does not fit is skipped
// rather than failing the parse; a reply without both fields is NotFound.
package resolver

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// LocateResult is the outcome of reading one oracle reply. X and Y are
// normalized to the searched frame and are only meaningful when Found is set.
type LocateResult struct {
	Found bool
	X, Y  float64
}

// NotFound is the zero LocateResult.
var NotFound = LocateResult{}

// Found returns a found result at the given normalized coordinates.
func Found(x, y float64) LocateResult {
	return LocateResult{Found: true, X: x, Y: y}
}

func (r LocateResult) String() string {
	if !r.Found {
		return "not found"
	}
	return fmt.Sprintf("(%.5f, %.5f)", r.X, r.Y)
}

// Parse reads an oracle reply. When a key appears more than once the last
// valid value wins.
func Parse(text string) LocateResult {
	var (
		x, y         float64
		haveX, haveY bool
	)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v, ok := parseNormalized(value)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "x":
			x, haveX = v, true
		case "y":
			y, haveY = v, true
		}
	}
	if !haveX || !haveY {
		return NotFound
	}
	return Found(x, y)
}

func parseNormalized(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}

// Resolve maps a found result onto absolute screen pixels.
//
// scope is the rectangle that was searched, in full-screen coordinates: the
// whole screen for full-screen captures, the region otherwise. The normalized
// point is scaled by the scope's size and rounded, the scope origin is added,
// then offset is added in pixel space. The result is clamped into
// [0, screen.X) x [0, screen.Y). The second return is false for NotFound.
func Resolve(res LocateResult, scope image.Rectangle, offset, screen image.Point) (image.Point, bool) {
	if !res.Found {
		return image.Point{}, false
	}
	size := scope.Size()
	p := image.Point{
		X: scope.Min.X + int(math.Round(res.X*float64(size.X))) + offset.X,
		Y: scope.Min.Y + int(math.Round(res.Y*float64(size.Y))) + offset.Y,
	}
	return Clamp(p, screen), true
}

// Clamp forces p inside a screen of the given size.
func Clamp(p, screen image.Point) image.Point {
	return image.Point{X: clampAxis(p.X, screen.X), Y: clampAxis(p.Y, screen.Y)}
}

func clampAxis(v, extent int) int {
	if v < 0 || extent <= 0 {
		return 0
	}
	if v >= extent {
		return extent - 1
	}
	return v
}
