// Package orchestrator runs the perceive-act-verify loop: capture the screen,
// ask the oracle where the target is, click it, wait, capture again and
// check that something changed. When nothing did, the next capture scope in
// the configured strategy list is tried.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/calibration"
	"github.com/xkilldash9x/sightclick/internal/capture"
	"github.com/xkilldash9x/sightclick/internal/config"
	"github.com/xkilldash9x/sightclick/internal/diff"
	"github.com/xkilldash9x/sightclick/internal/metrics"
	"github.com/xkilldash9x/sightclick/internal/narration"
	"github.com/xkilldash9x/sightclick/internal/oracle"
	"github.com/xkilldash9x/sightclick/internal/resolver"
)

// ErrTargetNotFound is returned by Calibrate when the oracle cannot see the
// target.
var ErrTargetNotFound = errors.New("target not found")

// Capturer produces frames. *capture.Capturer satisfies it.
type Capturer interface {
	ScreenSize() image.Point
	CaptureFull(ctx context.Context) (capture.Frame, error)
	CaptureRegion(ctx context.Context, center, size image.Point) (capture.Frame, error)
}

// Actuator moves the pointer and clicks. *humanoid.Humanoid satisfies it.
type Actuator interface {
	MoveAndClick(ctx context.Context, p image.Point) error
	Position() image.Point
}

// Sleeper waits for the UI to settle.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Deps are the collaborators of an Orchestrator. Narrator and Metrics are
// optional.
type Deps struct {
	Capturer    Capturer
	Locator     oracle.Locator
	Actuator    Actuator
	Sleeper     Sleeper
	Calibration calibration.Store
	Narrator    narration.Sink
	Metrics     *metrics.Recorder
	Logger      *zap.Logger
}

// Orchestrator runs one target search at a time.
type Orchestrator struct {
	deps   Deps
	cfg    config.OrchestratorConfig
	logger *zap.Logger
}

// New validates the configuration and wires the collaborators.
func New(deps Deps, cfg config.OrchestratorConfig) (*Orchestrator, error) {
	if deps.Capturer == nil || deps.Locator == nil || deps.Actuator == nil || deps.Sleeper == nil || deps.Calibration == nil {
		return nil, errors.New("orchestrator: capturer, locator, actuator, sleeper and calibration store are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if deps.Narrator == nil {
		deps.Narrator = narration.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: deps.Logger.Named("orchestrator")}, nil
}

// run holds the state of one invocation of Run.
type run struct {
	o       *Orchestrator
	logger  *zap.Logger
	target  string
	screen  image.Point
	offset  calibration.Offset
	outcome Outcome

	// baseline is the latest full-screen frame; each verification compares
	// against it.
	baseline  capture.Frame
	lastPoint *image.Point
}

// Run searches for target, clicks it and verifies the click had a visible
// effect. It never returns an error: every failure is described by the
// Outcome.
func (o *Orchestrator) Run(ctx context.Context, target string) Outcome {
	start := time.Now()
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	r := &run{
		o:       o,
		logger:  o.logger.With(zap.String("run_id", runID), zap.String("target", target)),
		target:  target,
		screen:  o.deps.Capturer.ScreenSize(),
		outcome: Outcome{RunID: runID, Target: target},
	}
	r.offset = o.loadOffset(ctx, r.logger)
	r.outcome.Offset = r.offset

	r.execute(ctx)

	r.outcome.Duration = time.Since(start)
	o.deps.Metrics.ObserveRun(string(r.outcome.Reason), r.outcome.Duration)

	fields := []zap.Field{
		zap.String("reason", string(r.outcome.Reason)),
		zap.Int("attempts", len(r.outcome.Attempts)),
		zap.Duration("duration", r.outcome.Duration),
	}
	if r.outcome.Success {
		r.logger.Info("Run succeeded.", fields...)
		o.deps.Narrator.Announce(fmt.Sprintf("Clicked %s.", target))
	} else {
		r.logger.Info("Run failed.", append(fields, zap.Error(r.outcome.Err))...)
		o.deps.Narrator.Announce(fmt.Sprintf("Could not click %s.", target))
	}
	return r.outcome
}

// loadOffset reads the calibration once at run start. A failed load is not
// fatal; the run continues with no correction.
func (o *Orchestrator) loadOffset(ctx context.Context, logger *zap.Logger) calibration.Offset {
	rec, err := o.deps.Calibration.Load(ctx)
	if err != nil {
		logger.Warn("Could not load calibration, using zero offset.", zap.Error(err))
		return calibration.Offset{}
	}
	if rec == nil {
		return calibration.Offset{}
	}
	logger.Debug("Calibration loaded.", zap.Int("dx", rec.DX), zap.Int("dy", rec.DY))
	return rec.Offset
}

func (r *run) execute(ctx context.Context) {
	o := r.o
	o.deps.Narrator.Announce(fmt.Sprintf("Looking for %s.", r.target))

	r.logger.Debug("State: capture_before")
	before, err := o.deps.Capturer.CaptureFull(ctx)
	if err != nil {
		r.fail(ctx, ReasonCaptureFailed, err)
		return
	}
	r.baseline = before

	for _, name := range o.cfg.Strategies {
		scope := Scope(name)
		if scope == ScopeLastKnownRegion && r.lastPoint == nil {
			r.logger.Debug("Skipping strategy without a known location.", zap.String("scope", name))
			continue
		}
		if len(r.outcome.Attempts) > 0 {
			o.deps.Narrator.Announce("Nothing changed, looking again more closely.")
		}

		done := r.attempt(ctx, scope)
		if done {
			return
		}
	}

	if len(r.outcome.Attempts) == 0 {
		r.fail(ctx, ReasonNoObservedChange, errors.New("no applicable strategy"))
		return
	}
	r.fail(ctx, ReasonNoObservedChange, nil)
}

// attempt runs one locate/act/verify cycle at scope. It reports whether the
// run reached a terminal state.
func (r *run) attempt(ctx context.Context, scope Scope) bool {
	o := r.o
	a := Attempt{Ordinal: len(r.outcome.Attempts) + 1, Scope: scope}
	logger := r.logger.With(zap.Int("attempt", a.Ordinal), zap.String("scope", string(scope)))

	logger.Debug("State: locate")
	frame, err := r.frameFor(ctx, scope)
	if err != nil {
		r.fail(ctx, ReasonCaptureFailed, err)
		return true
	}
	a.Region = frame.ScreenRect()

	started := time.Now()
	reply, err := o.deps.Locator.Locate(ctx, frame, r.target)
	o.deps.Metrics.ObserveOracle(time.Since(started), err)
	if err != nil {
		r.outcome.Attempts = append(r.outcome.Attempts, a)
		o.deps.Metrics.ObserveAttempt(string(scope), "error")
		r.fail(ctx, ReasonOracleUnavailable, err)
		return true
	}
	a.Reply = reply

	located := resolver.Parse(reply)
	point, found := resolver.Resolve(located, a.Region, r.offset.Point(), r.screen)
	if !found {
		logger.Debug("Target not found in reply.", zap.String("reply", reply))
		r.outcome.Attempts = append(r.outcome.Attempts, a)
		o.deps.Metrics.ObserveAttempt(string(scope), "not_found")
		r.fail(ctx, ReasonTargetNotFound, nil)
		return true
	}
	a.Found, a.Point = true, point
	logger.Debug("State: act", zap.Stringer("normalized", located), zap.Stringer("point", point))
	o.deps.Narrator.Announce(fmt.Sprintf("Found %s, clicking.", r.target))

	if err := o.deps.Actuator.MoveAndClick(ctx, point); err != nil {
		r.outcome.Attempts = append(r.outcome.Attempts, a)
		o.deps.Metrics.ObserveAttempt(string(scope), "error")
		r.fail(ctx, ReasonActuationFailed, err)
		return true
	}
	r.lastPoint = &point

	logger.Debug("State: wait", zap.Duration("settle", o.cfg.SettleDelay))
	if err := o.deps.Sleeper.Sleep(ctx, o.cfg.SettleDelay); err != nil {
		r.outcome.Attempts = append(r.outcome.Attempts, a)
		r.fail(ctx, ReasonCanceled, err)
		return true
	}

	logger.Debug("State: capture_after")
	after, err := o.deps.Capturer.CaptureFull(ctx)
	if err != nil {
		r.outcome.Attempts = append(r.outcome.Attempts, a)
		r.fail(ctx, ReasonCaptureFailed, err)
		return true
	}

	pct, err := diff.Compare(r.baseline, after)
	if err != nil {
		logger.Warn("Verification ambiguous, treating frames as maximally different.",
			zap.Float64("diff_percent", pct), zap.Error(err))
	}
	a.DiffPercent = pct
	a.Changed = diff.Changed(pct, o.cfg.ChangeThreshold)
	r.baseline = after
	r.outcome.Attempts = append(r.outcome.Attempts, a)
	o.deps.Metrics.ObserveDiff(pct)

	logger.Debug("State: verify",
		zap.Float64("diff_percent", pct),
		zap.Float64("threshold", o.cfg.ChangeThreshold),
		zap.Bool("changed", a.Changed))

	if a.Changed {
		o.deps.Metrics.ObserveAttempt(string(scope), "changed")
		r.outcome.Success = true
		r.outcome.Reason = ReasonSuccess
		return true
	}
	o.deps.Metrics.ObserveAttempt(string(scope), "unchanged")
	return false
}

// frameFor returns the frame to search for scope.
func (r *run) frameFor(ctx context.Context, scope Scope) (capture.Frame, error) {
	o := r.o
	switch scope {
	case ScopeFullScreen:
		return r.baseline, nil
	case ScopeCursorRegion:
		return o.deps.Capturer.CaptureRegion(ctx, o.deps.Actuator.Position(), r.regionSize())
	case ScopeLastKnownRegion:
		return o.deps.Capturer.CaptureRegion(ctx, *r.lastPoint, r.regionSize())
	default:
		return capture.Frame{}, fmt.Errorf("unknown scope %q", scope)
	}
}

// regionSize is the configured square clamped to the screen.
func (r *run) regionSize() image.Point {
	return image.Pt(min(r.o.cfg.RegionSize, r.screen.X), min(r.o.cfg.RegionSize, r.screen.Y))
}

// fail records a terminal failure. Any failure observed after ctx ended is
// reported as a cancellation.
func (r *run) fail(ctx context.Context, reason Reason, err error) {
	if ctx.Err() != nil && reason != ReasonTargetNotFound && reason != ReasonNoObservedChange {
		reason = ReasonCanceled
		if err == nil || !errors.Is(err, ctx.Err()) {
			err = ctx.Err()
		}
	}
	r.outcome.Success = false
	r.outcome.Reason = reason
	r.outcome.Err = err
}

// Calibrate locates target on the full screen with no offset applied and
// stores the offset that maps the observed point onto actual.
func (o *Orchestrator) Calibrate(ctx context.Context, target string, actual image.Point) (calibration.Record, error) {
	logger := o.logger.With(zap.String("target", target))

	frame, err := o.deps.Capturer.CaptureFull(ctx)
	if err != nil {
		return calibration.Record{}, err
	}
	reply, err := o.deps.Locator.Locate(ctx, frame, target)
	if err != nil {
		return calibration.Record{}, err
	}
	observed, found := resolver.Resolve(resolver.Parse(reply), frame.ScreenRect(), image.Point{}, o.deps.Capturer.ScreenSize())
	if !found {
		return calibration.Record{}, fmt.Errorf("%w: %q", ErrTargetNotFound, target)
	}

	rec := calibration.Record{
		Offset:    calibration.Derive(observed, actual),
		Target:    target,
		ObservedX: observed.X,
		ObservedY: observed.Y,
		UpdatedAt: time.Now().UTC(),
	}
	if err := o.deps.Calibration.Save(ctx, rec); err != nil {
		return calibration.Record{}, fmt.Errorf("saving calibration: %w", err)
	}
	logger.Info("Calibration saved.",
		zap.Stringer("observed", observed),
		zap.Stringer("actual", actual),
		zap.Int("dx", rec.DX), zap.Int("dy", rec.DY))
	return rec, nil
}
