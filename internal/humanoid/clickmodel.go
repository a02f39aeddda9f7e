package humanoid

import (
	"context"
	"fmt"
	"image"
	"time"
)

// MoveTo moves the pointer to target. When the motion model is disabled the
// pointer jumps there with a single event.
func (h *Humanoid) MoveTo(ctx context.Context, target image.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveTo(ctx, FromPoint(target))
}

func (h *Humanoid) moveTo(ctx context.Context, target Vector2D) error {
	if !h.cfg.Enabled {
		if err := h.executor.DispatchMouseEvent(ctx, MouseEventData{
			Type:   MouseMove,
			X:      target.X,
			Y:      target.Y,
			Button: ButtonNone,
		}); err != nil {
			return err
		}
		h.currentPos = target
		return nil
	}
	return h.simulateTrajectory(ctx, target)
}

// MoveAndClick moves to target and performs a left click there.
func (h *Humanoid) MoveAndClick(ctx context.Context, target image.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	dest := FromPoint(target)
	if err := h.moveTo(ctx, dest); err != nil {
		return fmt.Errorf("humanoid: moving to %v: %w", target, err)
	}
	return h.click(ctx, dest)
}

// click presses and releases the left button at pos. Callers hold the lock.
func (h *Humanoid) click(ctx context.Context, pos Vector2D) error {
	if err := h.executor.DispatchMouseEvent(ctx, MouseEventData{
		Type:       MousePress,
		X:          pos.X,
		Y:          pos.Y,
		Button:     ButtonLeft,
		Buttons:    1,
		ClickCount: 1,
	}); err != nil {
		return fmt.Errorf("humanoid: pressing button: %w", err)
	}

	holdErr := h.executor.Sleep(ctx, h.holdDuration())

	// The button is released even when the hold was interrupted.
	releaseCtx := ctx
	if holdErr != nil {
		releaseCtx = context.WithoutCancel(ctx)
	}
	if err := h.executor.DispatchMouseEvent(releaseCtx, MouseEventData{
		Type:       MouseRelease,
		X:          pos.X,
		Y:          pos.Y,
		Button:     ButtonLeft,
		Buttons:    0,
		ClickCount: 1,
	}); err != nil {
		return fmt.Errorf("humanoid: releasing button: %w", err)
	}
	return holdErr
}

// holdDuration picks how long the button stays down, uniformly within the
// configured bounds. Callers hold the lock.
func (h *Humanoid) holdDuration() time.Duration {
	lo, hi := h.cfg.ClickHoldMinMs, h.cfg.ClickHoldMaxMs
	if hi < lo {
		lo, hi = hi, lo
	}
	ms := lo
	if hi > lo {
		ms += h.rng.Intn(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
