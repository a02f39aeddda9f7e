package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// computeEaseInOutCubic provides a smooth acceleration and deceleration profile.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration returns MT = A + B*log2(1 + D/W) milliseconds, jittered by
// +/-15%. Callers hold the lock.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	const W = 30.0 // assumed target width in pixels
	id := math.Log2(1.0 + distance/W)
	mt := h.cfg.FittsA + h.cfg.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	if mt < 0 {
		mt = 0
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// generateIdealPath samples a cubic Bezier from start to end whose control
// points bow to one side of the straight line. The last point is end.
// Callers hold the lock.
func (h *Humanoid) generateIdealPath(start, end Vector2D, numSteps int) []Vector2D {
	mainVec := end.Sub(start)
	dist := mainVec.Mag()
	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	dir := mainVec.Normalize()
	normal := dir.Perp()
	bow := h.rng.NormFloat64() * dist * 0.08

	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3.0)).Add(normal.Mul(bow))
	p2 := start.Add(dir.Mul(dist * 2.0 / 3.0)).Add(normal.Mul(bow * 0.6))

	path := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		omt := 1.0 - t
		omt2 := omt * omt
		omt3 := omt2 * omt
		t2 := t * t
		t3 := t2 * t
		path[i] = p0.Mul(omt3).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t3))
	}
	path[numSteps-1] = end
	return path
}

// perturb adds tremor and jitter to p, scaled by how much of the movement is
// left so the pointer settles as it arrives. Callers hold the lock.
func (h *Humanoid) perturb(p Vector2D, remaining float64) Vector2D {
	tremor := Vector2D{X: h.tremorX.Next(), Y: h.tremorY.Next()}.Mul(h.cfg.TremorAmplitude)
	jitter := Vector2D{X: h.rng.NormFloat64(), Y: h.rng.NormFloat64()}.Mul(h.cfg.GaussianStrength)
	return p.Add(tremor.Add(jitter).Mul(remaining))
}

// simulateTrajectory moves the pointer from the current position to end,
// dispatching move events through the executor. The final event is exactly
// at end. Callers hold the lock.
func (h *Humanoid) simulateTrajectory(ctx context.Context, end Vector2D) error {
	start := h.currentPos
	dist := start.Dist(end)
	duration := h.fittsDuration(dist)

	numSteps := int(duration.Seconds() * 100)
	if numSteps < 2 {
		numSteps = 2
	}
	if numSteps > maxSteps {
		numSteps = maxSteps
	}

	idealPath := h.generateIdealPath(start, end, numSteps)
	last := len(idealPath) - 1

	var elapsed time.Duration
	for i := 0; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := 1.0
		if last > 0 {
			t = float64(i) / float64(last)
		}
		eased := computeEaseInOutCubic(t)
		pos := idealPath[int(math.Round(eased*float64(last)))]
		if i < last {
			pos = h.perturb(pos, 1-eased)
		} else {
			pos = end
		}

		// Sleep until this step's scheduled time on the eased timeline.
		due := time.Duration(eased * float64(duration))
		if wait := due - elapsed; wait > 0 {
			if err := h.executor.Sleep(ctx, wait); err != nil {
				return err
			}
			elapsed = due
		}

		if err := h.executor.DispatchMouseEvent(ctx, MouseEventData{
			Type:   MouseMove,
			X:      pos.X,
			Y:      pos.Y,
			Button: ButtonNone,
		}); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("Failed to dispatch mouse move event.", zap.Error(err))
			}
			return err
		}
		h.currentPos = pos
	}

	h.logger.Debug("Trajectory complete.",
		zap.Float64("distance", dist),
		zap.Duration("planned", duration),
		zap.Int("steps", len(idealPath)))
	return nil
}
