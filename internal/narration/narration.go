// Package narration announces progress to a human without blocking the
// caller. Announcements are best effort: when the queue is full they are
// dropped, and speaker failures are only logged.
package narration

import (
	"context"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Sink receives progress announcements.
type Sink interface {
	Announce(text string)
}

// Nop discards every announcement.
type Nop struct{}

func (Nop) Announce(string) {}

// Speaker renders one announcement. It may block.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// LogSpeaker writes announcements to the log.
type LogSpeaker struct {
	Logger *zap.Logger
}

func (s LogSpeaker) Speak(_ context.Context, text string) error {
	s.Logger.Info(text)
	return nil
}

// CommandSpeaker runs an external text-to-speech program (espeak, say, ...)
// with the text as its final argument.
type CommandSpeaker struct {
	Command string
	Args    []string
}

func (s CommandSpeaker) Speak(ctx context.Context, text string) error {
	args := append(append([]string{}, s.Args...), text)
	return exec.CommandContext(ctx, s.Command, args...).Run()
}

// Async hands announcements to a single background worker.
type Async struct {
	speaker Speaker
	logger  *zap.Logger
	queue   chan string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the worker. Close must be called to stop it.
func NewAsync(speaker Speaker, queueSize int, logger *zap.Logger) *Async {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		speaker: speaker,
		logger:  logger.Named("narration"),
		queue:   make(chan string, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Announce enqueues text without blocking. It is a no-op after Close.
func (a *Async) Announce(text string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- text:
	default:
		a.logger.Debug("Narration queue full, dropping announcement.", zap.String("text", text))
	}
}

func (a *Async) run() {
	defer close(a.done)
	for text := range a.queue {
		if err := a.speaker.Speak(a.ctx, text); err != nil {
			a.logger.Warn("Narration failed.", zap.String("text", text), zap.Error(err))
		}
	}
}

// Close stops accepting announcements and waits for queued ones to be spoken
// or for ctx to end, whichever is first. In the latter case the announcement
// in progress is interrupted.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-a.done
		return ctx.Err()
	}
}
