// Package session implements the live detection session controller: it owns the
// capture source, samples frames for inference on a fixed period, keeps the current
// selected detection and guards the sighting report flow with a photo step and a
// post-report cooldown.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/wildwatch-go/internal/clock"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Outcome describes what a sampling tick did.
type Outcome string

const (
	OutcomeSkippedInactive Outcome = "skipped_inactive"
	OutcomeSkippedCooldown Outcome = "skipped_cooldown"
	OutcomeSkippedBusy     Outcome = "skipped_busy"
	OutcomeNoFrame         Outcome = "no_frame"
	OutcomeNoDetection     Outcome = "no_detection"
	OutcomeDetected        Outcome = "detected"
	OutcomeFailed          Outcome = "failed"
	// OutcomeDiscarded means the result arrived after stop or after cooldown began.
	OutcomeDiscarded Outcome = "discarded"
)

// Controller is the live detection session. All methods are safe for concurrent use.
type Controller struct {
	cfg Config
	deps
	log logger.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu        sync.Mutex
	active    bool
	sessionID string
	current   *detection.Selected
	gate      gate
	// generation is bumped whenever in-flight sample results become stale.
	generation   uint64
	inFlight     bool
	sampleCancel context.CancelFunc
	loopCancel   context.CancelFunc
	loopDone     chan struct{}
	cooldown     clock.Timer
	lastReport   *reporting.Receipt

	samples sync.WaitGroup
}

// New creates a stopped controller. Collaborators not supplied through options are
// built from cfg.
func New(cfg Config, opts ...Option) (*Controller, error) {
	cfg.applyDefaults()
	c := &Controller{cfg: cfg, log: GetLogger(), gate: &idleGate{}}
	for _, opt := range opts {
		opt(&c.deps)
	}
	if err := c.resolve(&c.cfg, true); err != nil {
		return nil, err
	}
	return c, nil
}

// Start acquires the camera and schedules the sampler. It fails with ErrDeviceUnavailable
// when the device cannot be opened, in which case the session stays stopped.
// Starting an active session is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active {
		return nil
	}

	if err := c.source.Start(ctx); err != nil {
		c.log.Warn("camera start failed", logger.Error(err))
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return errors.New(err).
			Component("session").
			Category(errors.CategoryCapture).
			Build()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	c.active = true
	c.sessionID = uuid.NewString()
	c.current = nil
	c.generation++
	c.loopCancel = cancel
	c.loopDone = done
	c.setGateLocked(&idleGate{})
	sessionID := c.sessionID
	c.mu.Unlock()

	ticker := c.clock.NewTicker(c.cfg.SampleInterval)
	go c.run(loopCtx, ticker, done)

	c.metrics.SetCameraActive(true)
	c.log.Info("detection session started",
		logger.String("session_id", sessionID),
		logger.Duration("sample_interval", c.cfg.SampleInterval))
	c.emit(Event{Type: EventSessionStarted, SessionID: sessionID, Source: reporting.SourceLive, Time: c.clock.Now()})
	return nil
}

// Stop cancels the in-flight inference request, the sampler and the cooldown timer,
// waits for them to finish, clears the detection and photo, then releases the camera.
// Stop is idempotent.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.generation++
	if c.sampleCancel != nil {
		c.sampleCancel()
	}
	c.loopCancel()
	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
	c.current = nil
	c.setGateLocked(&idleGate{})
	done := c.loopDone
	sessionID := c.sessionID
	c.mu.Unlock()

	<-done
	c.samples.Wait()

	err := c.source.Stop()
	c.metrics.SetCameraActive(false)
	if err != nil {
		c.log.Warn("camera release failed", logger.Error(err))
		err = errors.New(err).
			Component("session").
			Category(errors.CategoryCapture).
			Build()
	}
	c.log.Info("detection session stopped", logger.String("session_id", sessionID))
	c.emit(Event{Type: EventSessionStopped, SessionID: sessionID, Source: reporting.SourceLive, Time: c.clock.Now()})
	return err
}

func (c *Controller) run(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			req, outcome := c.beginSample(ctx)
			if req == nil {
				c.recordSkip(outcome)
				continue
			}
			go func() {
				if _, err := c.finishSample(req); err != nil {
					c.log.Debug("sampling tick failed", logger.Error(err))
				}
			}()
		}
	}
}

// Sample runs one sampling tick synchronously and reports what it did. Inference
// failures clear the current detection and are returned for logging only.
func (c *Controller) Sample(ctx context.Context) (Outcome, error) {
	req, outcome := c.beginSample(ctx)
	if req == nil {
		c.recordSkip(outcome)
		return outcome, nil
	}
	return c.finishSample(req)
}

type sampleRequest struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	frame      []byte
}

// beginSample claims the single in-flight slot. A nil request means the tick is skipped.
func (c *Controller) beginSample(ctx context.Context) (*sampleRequest, Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.active:
		return nil, OutcomeSkippedInactive
	case c.gate.name() == GateCooldown:
		return nil, OutcomeSkippedCooldown
	case c.inFlight:
		return nil, OutcomeSkippedBusy
	}

	frame, ok := c.source.Latest()
	if !ok {
		return nil, OutcomeNoFrame
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.InferenceTimeout)
	c.inFlight = true
	c.sampleCancel = cancel
	c.samples.Add(1)
	return &sampleRequest{
		ctx:        reqCtx,
		cancel:     cancel,
		generation: c.generation,
		frame:      frame.JPEG,
	}, ""
}

func (c *Controller) finishSample(req *sampleRequest) (Outcome, error) {
	defer c.samples.Done()

	start := time.Now()
	candidates, err := c.detector.Detect(req.ctx, inference.JPEGFrame(req.frame))
	req.cancel()
	elapsed := time.Since(start)

	c.mu.Lock()
	c.inFlight = false
	c.sampleCancel = nil
	if req.generation != c.generation {
		c.mu.Unlock()
		c.metrics.RecordTick(string(OutcomeDiscarded))
		return OutcomeDiscarded, nil
	}

	var outcome Outcome
	switch {
	case err != nil:
		c.current = nil
		outcome = OutcomeFailed
	default:
		c.current = detection.Select(candidates, c.cfg.Filter, c.clock.Now())
		outcome = OutcomeNoDetection
		if c.current != nil {
			outcome = OutcomeDetected
		}
	}
	selected := c.current
	sessionID := c.sessionID
	c.mu.Unlock()

	c.metrics.RecordTick(string(outcome))
	if err != nil {
		c.metrics.ObserveInference(string(reporting.SourceLive), elapsed, errorCategory(err))
		c.log.Debug("inference failed, detection cleared",
			logger.Error(err),
			logger.Duration("elapsed", elapsed))
		return outcome, err
	}
	c.metrics.ObserveInference(string(reporting.SourceLive), elapsed, "")

	if selected != nil {
		c.metrics.RecordDetection(selected.Species, detection.NormalizeCondition(selected.Condition))
		c.log.Debug("detection selected",
			logger.String("species", selected.Species),
			logger.Float64("confidence", selected.Confidence),
			logger.String("condition", selected.Condition))
		c.emit(Event{Type: EventDetection, SessionID: sessionID, Source: reporting.SourceLive,
			Time: selected.SelectedAt, Detection: selected})
	}
	return outcome, nil
}

func (c *Controller) recordSkip(outcome Outcome) {
	c.metrics.RecordTick(string(outcome))
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		SessionID:       c.sessionID,
		CameraActive:    c.active,
		Gate:            c.gate.name(),
		Detection:       c.current,
		ReportDetection: pinned(c.gate),
		LastReport:      c.lastReport,
	}
	if p := photoOf(c.gate); p != nil {
		meta := *p
		meta.JPEG = nil
		st.Photo = &meta
	}
	if cd, ok := c.gate.(*cooldownGate); ok {
		st.CooldownActive = true
		st.CooldownRemainingMS = max(cd.until.Sub(c.clock.Now()), 0).Milliseconds()
	}
	return st
}

// Photo returns the active captured photo.
func (c *Controller) Photo() (CapturedPhoto, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := photoOf(c.gate)
	if p == nil {
		return CapturedPhoto{}, false
	}
	return *p, true
}

func (c *Controller) setGateLocked(g gate) {
	c.gate = g
	c.metrics.SetGateState(string(g.name()))
}

func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}
