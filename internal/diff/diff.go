// Package diff quantifies how much two frames differ.
//
// The percentage is the sum of absolute per-pixel, per-channel differences
// over the red, green and blue channels, divided by the maximum possible sum.
// Alpha is ignored. Frames of different sizes cannot be pixel-aligned and are
// reported as maximally different.
package diff

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/sightclick/internal/capture"
)

// Channels is the number of colour channels compared per pixel.
const Channels = 3

// MaxPercent is returned for frames that cannot be compared.
const MaxPercent = 100.0

// ErrDimensionMismatch is returned alongside MaxPercent when the frames have
// different sizes.
var ErrDimensionMismatch = errors.New("frame dimensions differ")

// Compare returns the difference between before and after as a percentage in
// [0,100]. Compare(f, f) is 0 and Compare(a, b) equals Compare(b, a).
//
// When the sizes differ the result is MaxPercent together with an error
// wrapping ErrDimensionMismatch. Callers decide whether to log it.
func Compare(before, after capture.Frame) (float64, error) {
	bs, as := before.Size(), after.Size()
	if bs != as {
		return MaxPercent, fmt.Errorf("%w: %v vs %v", ErrDimensionMismatch, bs, as)
	}
	pixels := bs.X * bs.Y
	if pixels == 0 {
		return 0, nil
	}

	var sum uint64
	for y := 0; y < bs.Y; y++ {
		bRow := before.Image.Pix[y*before.Image.Stride:]
		aRow := after.Image.Pix[y*after.Image.Stride:]
		for x := 0; x < bs.X; x++ {
			i := x * 4
			sum += absDiff(bRow[i], aRow[i])
			sum += absDiff(bRow[i+1], aRow[i+1])
			sum += absDiff(bRow[i+2], aRow[i+2])
		}
	}

	pct := float64(sum) / (float64(pixels) * Channels * 255) * 100
	if pct > MaxPercent {
		pct = MaxPercent
	}
	return pct, nil
}

// Changed reports whether pct exceeds threshold. The comparison is strict: a
// difference exactly equal to the threshold counts as unchanged.
func Changed(pct, threshold float64) bool {
	return pct > threshold
}

func absDiff(a, b uint8) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
