package oracle

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/config"
)

// mockBackend is a testify mock of Backend.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Init(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) Generate(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// blockingBackend waits for its context to end.
type blockingBackend struct {
	calls atomic.Int32
}

func (b *blockingBackend) Name() string               { return "blocking" }
func (b *blockingBackend) Init(context.Context) error { return nil }
func (b *blockingBackend) Generate(ctx context.Context, _ Request) (string, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return "", ctx.Err()
}

func testFrame() capture.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})
	return capture.Frame{Image: img}
}

func testConfig() config.OracleConfig {
	return config.OracleConfig{Model: "test-model", Timeout: time.Second, NotFoundSentinel: "NOPE"}
}

func TestClient_Lifecycle(t *testing.T) {
	t.Run("locate before init", func(t *testing.T) {
		backend := new(mockBackend)
		c := NewClient(backend, testConfig(), zap.NewNop())

		assert.Equal(t, StateUninitialized, c.State())
		_, err := c.Locate(context.Background(), testFrame(), "ok button")
		assert.ErrorIs(t, err, ErrNotInitialized)
		backend.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("init once then ready", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(nil).Once()
		c := NewClient(backend, testConfig(), zap.NewNop())

		require.NoError(t, c.Init(context.Background()))
		require.NoError(t, c.Init(context.Background()))
		assert.Equal(t, StateReady, c.State())
		backend.AssertNumberOfCalls(t, "Init", 1)
	})

	t.Run("failed init is sticky and unavailable", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(errors.New("no key")).Once()
		c := NewClient(backend, testConfig(), zap.NewNop())

		err := c.Init(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, StateFailed, c.State())

		assert.Equal(t, err, c.Init(context.Background()))
		_, locErr := c.Locate(context.Background(), testFrame(), "ok button")
		assert.ErrorIs(t, locErr, ErrUnavailable)
		backend.AssertNumberOfCalls(t, "Init", 1)
	})
}

func TestClient_Locate(t *testing.T) {
	t.Run("returns reply verbatim", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(nil)
		backend.On("Generate", mock.Anything, mock.MatchedBy(func(r Request) bool {
			return r.MIMEType == "image/png" && len(r.Image) > 0 &&
				assert.ObjectsAreEqual(BuildPrompt("retry button", "NOPE"), r.Prompt)
		})).Return("x: 0.5\ny: 0.25", nil)

		c := NewClient(backend, testConfig(), zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		reply, err := c.Locate(context.Background(), testFrame(), "retry button")
		require.NoError(t, err)
		assert.Equal(t, "x: 0.5\ny: 0.25", reply)
		backend.AssertExpectations(t)
	})

	t.Run("backend error is unavailable", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(nil)
		backend.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("401 unauthorized"))

		c := NewClient(backend, testConfig(), zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		_, err := c.Locate(context.Background(), testFrame(), "retry button")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		backend := &blockingBackend{}
		cfg := testConfig()
		cfg.Timeout = 20 * time.Millisecond
		c := NewClient(backend, cfg, zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		_, err := c.Locate(context.Background(), testFrame(), "retry button")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.EqualValues(t, 1, backend.calls.Load())
	})

	t.Run("caller cancellation is not unavailable", func(t *testing.T) {
		backend := &blockingBackend{}
		cfg := testConfig()
		cfg.Timeout = time.Minute
		c := NewClient(backend, cfg, zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := c.Locate(ctx, testFrame(), "retry button")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})

	t.Run("rate limiter honours cancellation", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(nil)
		backend.On("Generate", mock.Anything, mock.Anything).Return("NOPE", nil).Once()

		cfg := testConfig()
		cfg.RateLimit = 0.001
		cfg.Burst = 1
		c := NewClient(backend, cfg, zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		_, err := c.Locate(context.Background(), testFrame(), "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = c.Locate(ctx, testFrame(), "a")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
		backend.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("empty frame", func(t *testing.T) {
		backend := new(mockBackend)
		backend.On("Init", mock.Anything).Return(nil)
		c := NewClient(backend, testConfig(), zap.NewNop())
		require.NoError(t, c.Init(context.Background()))

		_, err := c.Locate(context.Background(), capture.Frame{}, "a")
		require.Error(t, err)
		backend.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  retry button ", "")
	assert.Contains(t, p, `"retry button"`)
	assert.Contains(t, p, "x: <relative position>")
	assert.Contains(t, p, "y: <relative position>")
	assert.Contains(t, p, DefaultNotFoundSentinel)

	assert.Contains(t, BuildPrompt("ok", "MISSING"), "reply only with: MISSING")
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.OracleConfig{Provider: config.ProviderGemini, Model: "m"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GeminiBackend{}, b)

	b, err = NewBackend(config.OracleConfig{Provider: config.ProviderOpenAI, Model: "m"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIBackend{}, b)

	_, err = NewBackend(config.OracleConfig{Provider: "carrier-pigeon"}, nil, zap.NewNop())
	assert.Error(t, err)
}
