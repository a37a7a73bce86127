package session

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// OpenReport pins the current detection and moves the gate from Idle to AwaitingCapture.
func (c *Controller) OpenReport() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return stateError(ErrNoDetectionToReport, c.gate.name(), "open_report")
	}
	if !c.active || c.gate.name() != GateIdle {
		return stateError(ErrInvalidTransition, c.gate.name(), "open_report")
	}
	c.setGateLocked(&awaitingCaptureGate{detection: c.current})
	c.log.Debug("report opened", logger.String("species", c.current.Species))
	return nil
}

// CapturePhoto takes a confirming still from the live source. It is allowed only in
// AwaitingCapture and fails with ErrCaptureNotReady, leaving the state unchanged, when
// the source has no valid frame yet. Every capture gets a fresh ID.
func (c *Controller) CapturePhoto() (CapturedPhoto, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.gate.(*awaitingCaptureGate)
	if !ok {
		return CapturedPhoto{}, stateError(ErrInvalidTransition, c.gate.name(), "capture_photo")
	}

	frame, ok := c.source.Latest()
	if !ok {
		return CapturedPhoto{}, errors.New(ErrCaptureNotReady).
			Component("session").
			Category(errors.CategoryCapture).
			Context("gate_state", string(GateAwaitingCapture)).
			Build()
	}

	photo := &CapturedPhoto{
		ID:         uuid.NewString(),
		JPEG:       bytes.Clone(frame.JPEG),
		Width:      frame.Width,
		Height:     frame.Height,
		CapturedAt: c.clock.Now(),
	}
	c.setGateLocked(&photoCapturedGate{detection: st.detection, photo: photo})
	c.log.Debug("photo captured",
		logger.String("photo_id", photo.ID),
		logger.Int("width", photo.Width),
		logger.Int("height", photo.Height))
	return *photo, nil
}

// Retake discards the captured photo and returns to AwaitingCapture.
func (c *Controller) Retake() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.gate.(*photoCapturedGate)
	if !ok {
		return stateError(ErrInvalidTransition, c.gate.name(), "retake")
	}
	c.setGateLocked(&awaitingCaptureGate{detection: st.detection})
	c.log.Debug("photo discarded for retake", logger.String("photo_id", st.photo.ID))
	return nil
}

// CancelReport abandons the open report and returns to Idle.
func (c *Controller) CancelReport() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.gate.(type) {
	case *awaitingCaptureGate, *photoCapturedGate:
		c.setGateLocked(&idleGate{})
		return nil
	default:
		return stateError(ErrInvalidTransition, c.gate.name(), "cancel_report")
	}
}

// SubmitReport merges draft with the pinned detection and captured photo and posts it.
// Without a detection it fails with ErrNoDetectionToReport before any network call.
// On success the session enters cooldown; on failure the gate returns to PhotoCaptured
// so the same draft can be retried.
func (c *Controller) SubmitReport(ctx context.Context, draft reporting.Draft) (reporting.Receipt, error) {
	c.mu.Lock()
	sel := pinned(c.gate)
	if sel == nil && c.gate.name() == GateIdle {
		sel = c.current
	}
	if sel == nil {
		gs := c.gate.name()
		c.mu.Unlock()
		return reporting.Receipt{}, stateError(ErrNoDetectionToReport, gs, "submit_report")
	}
	st, ok := c.gate.(*photoCapturedGate)
	if !ok {
		gs := c.gate.name()
		c.mu.Unlock()
		return reporting.Receipt{}, stateError(ErrInvalidTransition, gs, "submit_report")
	}
	submitting := &submittingGate{detection: st.detection, photo: st.photo}
	c.setGateLocked(submitting)
	sessionID := c.sessionID
	c.mu.Unlock()

	att := c.attachment(ctx, st.photo)
	report := reporting.Build(st.detection, draft, c.cfg.CurrentUserID, reporting.SourceLive, att, c.clock.Now())

	start := time.Now()
	receipt, err := c.reporter.Submit(ctx, report)
	elapsed := time.Since(start)

	c.mu.Lock()
	// Stop may have reset the gate while the request was in flight.
	current := c.gate == gate(submitting)
	if err != nil {
		if current {
			c.setGateLocked(&photoCapturedGate{detection: st.detection, photo: st.photo})
		}
		c.mu.Unlock()

		c.metrics.RecordReport(string(reporting.SourceLive), "error", elapsed)
		c.log.Warn("report submission failed, photo kept for retry",
			logger.String("species", report.Species),
			logger.Error(err))
		c.emit(Event{Type: EventReportFailed, SessionID: sessionID, Source: reporting.SourceLive,
			Time: c.clock.Now(), Detection: st.detection, Report: &report, Err: err})
		return reporting.Receipt{}, submissionError(err)
	}

	c.lastReport = &receipt
	if current {
		c.startCooldownLocked()
	}
	c.mu.Unlock()

	c.metrics.RecordReport(string(reporting.SourceLive), "success", elapsed)
	c.log.Info("sighting reported",
		logger.String("report_id", receipt.ReportID),
		logger.String("species", report.Species),
		logger.String("urgency", report.Urgency),
		logger.Duration("cooldown", c.cfg.Cooldown))
	c.emit(Event{Type: EventReportSubmitted, SessionID: sessionID, Source: reporting.SourceLive,
		Time: c.clock.Now(), Detection: st.detection, Report: &report, Receipt: &receipt})
	return receipt, nil
}

// attachment stores the photo when a photo store is configured and falls back to
// inline image data when there is none or the upload fails.
func (c *Controller) attachment(ctx context.Context, photo *CapturedPhoto) reporting.Attachment {
	inline := reporting.Attachment{Filename: photo.ID + ".jpg", ContentType: "image/jpeg", Data: photo.JPEG}
	if c.photos == nil {
		return inline
	}
	ref, err := c.photos.Put(ctx, photo.ID, photo.JPEG, photo.CapturedAt)
	if err != nil {
		c.log.Warn("photo upload failed, inlining image in report",
			logger.String("photo_id", photo.ID),
			logger.Error(err))
		return inline
	}
	return reporting.Attachment{Filename: ref}
}

// startCooldownLocked clears the detection and photo, drops in-flight sample results
// and arms the cooldown timer.
func (c *Controller) startCooldownLocked() {
	c.current = nil
	c.generation++
	if c.sampleCancel != nil {
		c.sampleCancel()
	}
	cd := &cooldownGate{until: c.clock.Now().Add(c.cfg.Cooldown)}
	c.setGateLocked(cd)
	c.cooldown = c.clock.AfterFunc(c.cfg.Cooldown, func() { c.endCooldown(cd) })
}

func (c *Controller) endCooldown(cd *cooldownGate) {
	c.mu.Lock()
	if c.gate != gate(cd) {
		c.mu.Unlock()
		return
	}
	c.cooldown = nil
	c.setGateLocked(&idleGate{})
	sessionID := c.sessionID
	c.mu.Unlock()

	c.log.Debug("cooldown ended, sampling resumed")
	c.emit(Event{Type: EventCooldownEnded, SessionID: sessionID, Source: reporting.SourceLive, Time: c.clock.Now()})
}

func submissionError(err error) error {
	if errors.Is(err, ErrReportSubmissionFailed) {
		return err
	}
	return errors.New(errors.Join(ErrReportSubmissionFailed, err)).
		Component("session").
		Category(errors.CategoryReporting).
		Build()
}
