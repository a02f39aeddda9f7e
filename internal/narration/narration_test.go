package narration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingSpeaker records spoken text and can be made to block or fail.
type recordingSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	release chan struct{}
	err     error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.err
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func TestAsync_DeliversInOrder(t *testing.T) {
	speaker := &recordingSpeaker{}
	a := NewAsync(speaker, 8, zap.NewNop())

	a.Announce("capturing screen")
	a.Announce("clicking")
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, []string{"capturing screen", "clicking"}, speaker.said())
}

func TestAsync_DropsWhenFullWithoutBlocking(t *testing.T) {
	speaker := &recordingSpeaker{release: make(chan struct{})}
	a := NewAsync(speaker, 1, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			a.Announce("spam")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Announce blocked on a full queue")
	}

	close(speaker.release)
	require.NoError(t, a.Close(context.Background()))
	// One in flight plus at most one queued.
	assert.LessOrEqual(t, len(speaker.said()), 2)
}

func TestAsync_FailuresAreLoggedOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	speaker := &recordingSpeaker{err: errors.New("no audio device")}
	a := NewAsync(speaker, 4, zap.New(core))

	a.Announce("hello")
	require.NoError(t, a.Close(context.Background()))

	require.Equal(t, 1, logs.FilterMessage("Narration failed.").Len())
}

func TestAsync_CloseHonoursDeadline(t *testing.T) {
	speaker := &recordingSpeaker{release: make(chan struct{})}
	a := NewAsync(speaker, 4, zap.NewNop())
	a.Announce("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Announcing after close is a silent no-op, and closing twice is safe.
	a.Announce("late")
	assert.NoError(t, a.Close(context.Background()))
}

func TestLogSpeaker(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, LogSpeaker{Logger: zap.New(core)}.Speak(context.Background(), "target found"))
	assert.Equal(t, 1, logs.FilterMessage("target found").Len())
}

func TestCommandSpeaker(t *testing.T) {
	err := CommandSpeaker{Command: "definitely-not-a-real-tts-binary"}.Speak(context.Background(), "hi")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Announce("nothing happens")
}
