// FILE: ./internal/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockExecutor implements Executor for testing. Sleeps are recorded, not
// slept.
type mockExecutor struct {
	t                *testing.T
	dispatchedEvents []MouseEventData
	sleepDurations   []time.Duration
	mu               sync.Mutex

	// If set, these replace the default behavior.
	MockSleep              func(ctx context.Context, d time.Duration) error
	MockDispatchMouseEvent func(ctx context.Context, data MouseEventData) error
}

func newMockExecutor(t *testing.T) *mockExecutor {
	return &mockExecutor{t: t}
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data MouseEventData) error {
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return m.DefaultDispatchMouseEvent(ctx, data)
}

// DefaultDispatchMouseEvent records the event, then honours cancellation.
func (m *mockExecutor) DefaultDispatchMouseEvent(ctx context.Context, data MouseEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchedEvents = append(m.dispatchedEvents, data)
	return ctx.Err()
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	return m.DefaultSleep(ctx, d)
}

func (m *mockExecutor) DefaultSleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepDurations = append(m.sleepDurations, d)
	return ctx.Err()
}

func (m *mockExecutor) events() []MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MouseEventData(nil), m.dispatchedEvents...)
}

func (m *mockExecutor) eventsOfType(typ MouseEventType) []MouseEventData {
	var out []MouseEventData
	for _, e := range m.events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockExecutor) totalSleep() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, d := range m.sleepDurations {
		total += d
	}
	return total
}
