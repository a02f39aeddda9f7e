// Package calibration persists the single pixel-space offset applied to
// oracle-derived coordinates.
package calibration

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("calibration record is corrupt")

// Offset is a correction in screen pixels, added after normalized
// coordinates are converted to absolute ones.
type Offset struct {
	DX int `json:"offset_x"`
	DY int `json:"offset_y"`
}

// Point returns the offset as an image.Point.
func (o Offset) Point() image.Point {
	return image.Pt(o.DX, o.DY)
}

// IsZero reports whether the offset has no effect.
func (o Offset) IsZero() bool {
	return o.DX == 0 && o.DY == 0
}

// Derive returns the offset that moves observed onto actual.
func Derive(observed, actual image.Point) Offset {
	d := actual.Sub(observed)
	return Offset{DX: d.X, DY: d.Y}
}

// Record is the persisted calibration. Target and Observed describe the
// calibration step that produced the offset, when there was one.
type Record struct {
	Offset
	Target    string    `json:"target,omitempty"`
	ObservedX int       `json:"observed_x,omitempty"`
	ObservedY int       `json:"observed_y,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and saves the single calibration record. Save overwrites
// whatever was there. Load returns (nil, nil) when nothing has been saved.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec Record) error
}
