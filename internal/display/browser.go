package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
	"github.com/xkilldash9x/sightclick/internal/humanoid"
)

// Browser treats a Chrome viewport as the screen. Screenshots come from
// Page.captureScreenshot and pointer events go through
// Input.dispatchMouseEvent, so the page sees real trusted input.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	size        image.Point
	logger      *zap.Logger

	mu      sync.Mutex
	pointer image.Point
}

// execAllocatorOptions builds the Chrome flags for cfg.
func execAllocatorOptions(cfg config.DisplayConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if key, value, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(key, value))
			continue
		}
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewBrowser launches Chrome, sizes the viewport and loads cfg.URL.
func NewBrowser(ctx context.Context, cfg config.DisplayConfig, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("display.browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), execAllocatorOptions(cfg)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	b := &Browser{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		size:        image.Pt(cfg.Width, cfg.Height),
		logger:      logger,
		pointer:     image.Pt(cfg.Width/2, cfg.Height/2),
	}

	err := b.run(ctx,
		chromedp.EmulateViewport(int64(cfg.Width), int64(cfg.Height)),
		chromedp.Navigate(cfg.URL),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("starting browser display: %w", err)
	}

	logger.Info("Browser display ready.", zap.String("url", cfg.URL), zap.Stringer("size", b.size))
	return b, nil
}

// run executes actions on the tab, aborting them if ctx ends. Cancelling
// the per-call context stops the action without closing the tab.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (b *Browser) Size() image.Point { return b.size }

// Grab captures r from the viewport.
func (b *Browser) Grab(ctx context.Context, r image.Rectangle) (image.Image, error) {
	var buf []byte
	err := b.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      float64(r.Min.X),
				Y:      float64(r.Min.Y),
				Width:  float64(r.Dx()),
				Height: float64(r.Dy()),
				Scale:  1,
			}).
			Do(c)
		return err
	}))
	if err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

func (b *Browser) Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

// DispatchMouseEvent sends one pointer event to the page.
func (b *Browser) DispatchMouseEvent(ctx context.Context, data humanoid.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))

	if err := b.run(ctx, p); err != nil {
		return err
	}

	b.mu.Lock()
	b.pointer = humanoid.Vector2D{X: data.X, Y: data.Y}.Point()
	b.mu.Unlock()
	return nil
}

func (b *Browser) PointerPosition() image.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pointer
}

// Close shuts the tab and the browser process.
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}
