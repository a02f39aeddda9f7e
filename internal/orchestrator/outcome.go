package orchestrator

import (
	"fmt"
	"image"
	"time"

	"github.com/xkilldash9x/sightclick/internal/calibration"
)

// Reason classifies how a run ended.
type Reason string

const (
	ReasonSuccess           Reason = "success"
	ReasonTargetNotFound    Reason = "target_not_found"
	ReasonNoObservedChange  Reason = "no_observed_change"
	ReasonOracleUnavailable Reason = "oracle_unavailable"
	ReasonCaptureFailed     Reason = "capture_failed"
	ReasonActuationFailed   Reason = "actuation_failed"
	ReasonCanceled          Reason = "canceled"
)

// Scope is the capture scope an attempt searched.
type Scope string

const (
	ScopeFullScreen      Scope = "full_screen"
	ScopeCursorRegion    Scope = "cursor_region"
	ScopeLastKnownRegion Scope = "last_known_region"
)

// Attempt records one locate/act/verify cycle.
type Attempt struct {
	Ordinal int
	Scope   Scope
	// Region is the searched rectangle in full-screen coordinates.
	Region image.Rectangle
	Reply  string
	Found  bool
	// Point is the absolute click location; only set when Found.
	Point       image.Point
	DiffPercent float64
	Changed     bool
}

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID    string
	Target   string
	Success  bool
	Reason   Reason
	Err      error
	Offset   calibration.Offset
	Attempts []Attempt
	Duration time.Duration
}

func (o Outcome) String() string {
	if o.Success {
		return fmt.Sprintf("success after %d attempt(s)", len(o.Attempts))
	}
	if o.Err != nil {
		return fmt.Sprintf("failure (%s): %v", o.Reason, o.Err)
	}
	return fmt.Sprintf("failure (%s) after %d attempt(s)", o.Reason, len(o.Attempts))
}

// Clicks returns the number of actuations the run performed.
func (o Outcome) Clicks() int {
	n := 0
	for _, a := range o.Attempts {
		if a.Found {
			n++
		}
	}
	return n
}
