// internal/humanoid/humanoid.go
package humanoid

import (
	"image"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
)

// maxSteps bounds the number of move events per trajectory.
const maxSteps = 200

// Humanoid moves the pointer and clicks the way a person would: a curved,
// eased path whose duration follows Fitts's law, with tremor along the way
// and an exact landing on the target.
type Humanoid struct {
	// mu guards every field below; public methods hold it for the whole action.
	mu         sync.Mutex
	cfg        config.HumanoidConfig
	logger     *zap.Logger
	executor   Executor
	currentPos Vector2D
	rng        *rand.Rand
	tremorX    *PinkNoiseGenerator
	tremorY    *PinkNoiseGenerator
}

// New creates a Humanoid seeded from the clock.
func New(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor) *Humanoid {
	return newWithRand(cfg, logger, executor, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTestHumanoid creates a Humanoid with deterministic randomness and a
// fixed persona.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := config.HumanoidConfig{
		Enabled:          true,
		FittsA:           100,
		FittsB:           150,
		GaussianStrength: 0.5,
		TremorAmplitude:  2.0,
		ClickHoldMinMs:   50,
		ClickHoldMaxMs:   120,
	}
	return newWithRand(cfg, zap.NewNop(), executor, rand.New(rand.NewSource(seed)))
}

func newWithRand(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor, rng *rand.Rand) *Humanoid {
	return &Humanoid{
		cfg:      cfg,
		logger:   logger.Named("humanoid"),
		executor: executor,
		rng:      rng,
		tremorX:  NewPinkNoiseGenerator(rng, 12),
		tremorY:  NewPinkNoiseGenerator(rng, 12),
	}
}

// Position returns where the Humanoid last put the pointer.
func (h *Humanoid) Position() image.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos.Point()
}

// SetPosition tells the Humanoid where the pointer currently is, for example
// after the user moved it by hand.
func (h *Humanoid) SetPosition(p image.Point) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentPos = FromPoint(p)
}
