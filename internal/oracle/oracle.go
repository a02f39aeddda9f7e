// Package oracle asks an external multimodal model where a named UI element
// is in a frame. Replies are returned as raw text; interpreting them is the
// resolver's job.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/config"
)

var (
	// ErrUnavailable marks transport, auth and timeout failures talking to the
	// model. It is distinct from a well-formed "not found" reply.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrNotInitialized is returned by Locate before Init has succeeded.
	ErrNotInitialized = errors.New("oracle not initialized")
)

// Locator is what the orchestrator needs from an oracle.
type Locator interface {
	Locate(ctx context.Context, frame capture.Frame, target string) (string, error)
}

// Request is a single prompt plus image sent to a backend.
type Request struct {
	Prompt   string
	Image    []byte
	MIMEType string
}

// Backend is a concrete model provider.
type Backend interface {
	Name() string
	// Init prepares the backend (credentials, SDK client). Called once.
	Init(ctx context.Context) error
	Generate(ctx context.Context, req Request) (string, error)
}

// State is the lifecycle of a Client.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client wraps a Backend with an explicit lifecycle, a per-call timeout and
// request pacing.
type Client struct {
	backend Backend
	cfg     config.OracleConfig
	limiter *rate.Limiter
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	initErr error
}

// NewClient builds an uninitialized client. Call Init before Locate.
func NewClient(backend Backend, cfg config.OracleConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("oracle").With(zap.String("backend", backend.Name())),
	}
}

// Init is the single initialization entry point. The first call moves the
// client to Ready or Failed; later calls return the same result.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		return nil
	case StateFailed:
		return c.initErr
	}

	if err := c.backend.Init(ctx); err != nil {
		c.state = StateFailed
		c.initErr = fmt.Errorf("%w: initializing %s: %v", ErrUnavailable, c.backend.Name(), err)
		c.logger.Error("Oracle initialization failed.", zap.Error(err))
		return c.initErr
	}
	c.state = StateReady
	c.logger.Debug("Oracle ready.", zap.String("model", c.cfg.Model))
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locate sends the frame and a prompt naming target to the backend and
// returns its reply verbatim. Cancellation of ctx is returned as ctx.Err();
// every other backend failure wraps ErrUnavailable.
func (c *Client) Locate(ctx context.Context, frame capture.Frame, target string) (string, error) {
	switch c.State() {
	case StateUninitialized:
		return "", ErrNotInitialized
	case StateFailed:
		return "", c.initErr
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// Wait fails early when the next token lands after the deadline.
		return "", fmt.Errorf("oracle: rate limited: %w", context.DeadlineExceeded)
	}

	img, err := EncodePNG(frame)
	if err != nil {
		return "", err
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.backend.Generate(callCtx, Request{
		Prompt:   BuildPrompt(target, c.cfg.NotFoundSentinel),
		Image:    img,
		MIMEType: "image/png",
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("Oracle call failed.", zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.logger.Debug("Oracle replied.",
		zap.Duration("elapsed", elapsed),
		zap.Int("image_bytes", len(img)),
		zap.String("reply", reply))
	return reply, nil
}

// EncodePNG serializes a frame for transmission.
func EncodePNG(frame capture.Frame) ([]byte, error) {
	if frame.Image == nil {
		return nil, errors.New("oracle: frame has no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Image); err != nil {
		return nil, fmt.Errorf("oracle: encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
