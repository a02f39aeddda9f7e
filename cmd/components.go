package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/calibration"
	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/config"
	"github.com/xkilldash9x/sightclick/internal/display"
	"github.com/xkilldash9x/sightclick/internal/humanoid"
	"github.com/xkilldash9x/sightclick/internal/metrics"
	"github.com/xkilldash9x/sightclick/internal/narration"
	"github.com/xkilldash9x/sightclick/internal/oracle"
	"github.com/xkilldash9x/sightclick/internal/orchestrator"
)

const shutdownTimeout = 5 * time.Second

// components holds the initialized services for one command.
type components struct {
	Display      display.Display
	Capturer     *capture.Capturer
	Humanoid     *humanoid.Humanoid
	Oracle       *oracle.Client
	Store        calibration.Store
	Narrator     *narration.Async
	Metrics      *metrics.Recorder
	Orchestrator *orchestrator.Orchestrator
	DBPool       *pgxpool.Pool

	logger *zap.Logger
}

// Shutdown releases everything that was opened, in reverse order.
func (c *components) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Narrator != nil {
		if err := c.Narrator.Close(ctx); err != nil {
			c.logger.Warn("Narration did not drain before shutdown.", zap.Error(err))
		}
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
	if c.Display != nil {
		if err := c.Display.Close(); err != nil {
			c.logger.Warn("Error closing display.", zap.Error(err))
		}
	}
}

// openDisplay opens the configured screen backend and a capturer over it.
func (c *components) openDisplay(ctx context.Context, cfg config.Interface) error {
	d, err := display.Open(ctx, cfg.Display(), c.logger)
	if err != nil {
		return fmt.Errorf("failed to open display: %w", err)
	}
	c.Display = d
	c.Capturer = capture.New(d, c.logger)
	return nil
}

// openStore opens the configured calibration store.
func (c *components) openStore(ctx context.Context, cfg config.CalibrationConfig) error {
	switch cfg.Backend {
	case config.CalibrationPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DBPool = pool
		store, err := calibration.NewPostgresStore(ctx, pool, c.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize calibration store: %w", err)
		}
		c.Store = store
	default:
		store, err := calibration.NewFileStore(cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize calibration store: %w", err)
		}
		c.Store = store
	}
	return nil
}

// openOracle builds and initializes the vision oracle client.
func (c *components) openOracle(ctx context.Context, cfg config.OracleConfig) error {
	backend, err := oracle.NewBackend(cfg, &http.Client{}, c.logger)
	if err != nil {
		return err
	}
	client := oracle.NewClient(backend, cfg, c.logger)
	if err := client.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}
	c.Oracle = client
	return nil
}

// openNarrator starts the announcer when narration is enabled.
func (c *components) openNarrator(cfg config.NarrationConfig) {
	if !cfg.Enabled {
		return
	}
	var speaker narration.Speaker = narration.LogSpeaker{Logger: c.logger.Named("narration")}
	if cfg.Command != "" {
		speaker = narration.CommandSpeaker{Command: cfg.Command, Args: cfg.Args}
	}
	c.Narrator = narration.NewAsync(speaker, cfg.QueueSize, c.logger)
}

// initializeComponents wires everything the click and calibrate commands
// need. On error the partially built components are returned so the caller
// can shut them down.
func initializeComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*components, error) {
	c := &components{logger: logger, Metrics: metrics.New()}

	if err := c.openStore(ctx, cfg.Calibration()); err != nil {
		return c, err
	}
	if err := c.openOracle(ctx, cfg.Oracle()); err != nil {
		return c, err
	}
	if err := c.openDisplay(ctx, cfg); err != nil {
		return c, err
	}

	c.Humanoid = humanoid.New(cfg.Humanoid(), logger, c.Display)
	c.Humanoid.SetPosition(c.Display.PointerPosition())
	c.openNarrator(cfg.Narration())

	deps := orchestrator.Deps{
		Capturer:    c.Capturer,
		Locator:     c.Oracle,
		Actuator:    c.Humanoid,
		Sleeper:     c.Display,
		Calibration: c.Store,
		Metrics:     c.Metrics,
		Logger:      logger,
	}
	if c.Narrator != nil {
		deps.Narrator = c.Narrator
	}
	orch, err := orchestrator.New(deps, cfg.Orchestrator())
	if err != nil {
		return c, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	c.Orchestrator = orch
	return c, nil
}
