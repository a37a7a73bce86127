package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// UploadSession analyzes one uploaded image or video and reports it. There is no photo
// step and no cooldown: the uploaded media is the evidence.
type UploadSession struct {
	cfg Config
	deps
	log logger.Logger

	mu         sync.Mutex
	id         string
	media      *inference.Media
	current    *detection.Selected
	submitting bool
}

// NewUploadSession creates an empty upload session.
func NewUploadSession(cfg Config, opts ...Option) (*UploadSession, error) {
	cfg.applyDefaults()
	u := &UploadSession{cfg: cfg, log: GetLogger().Module("upload")}
	for _, opt := range opts {
		opt(&u.deps)
	}
	if err := u.resolve(&u.cfg, false); err != nil {
		return nil, err
	}
	return u, nil
}

// Analyze runs inference on media and keeps the selected detection, replacing any
// previous upload. A nil detection means nothing passed the filter. Errors wrap
// ErrInferenceTransport and are returned to the caller, unlike live sampling.
func (u *UploadSession) Analyze(ctx context.Context, media inference.Media) (*detection.Selected, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.UploadTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := u.detector.Detect(ctx, media)
	elapsed := time.Since(start)
	if err != nil {
		u.metrics.ObserveInference(string(reporting.SourceUpload), elapsed, errorCategory(err))
		u.log.Warn("upload analysis failed",
			logger.String("filename", filepath.Base(media.Filename)),
			logger.Error(err))
		return nil, err
	}
	u.metrics.ObserveInference(string(reporting.SourceUpload), elapsed, "")

	sel := detection.Select(candidates, u.cfg.Filter, u.clock.Now())

	u.mu.Lock()
	u.id = uuid.NewString()
	u.media = &media
	u.current = sel
	id := u.id
	u.mu.Unlock()

	u.log.Info("upload analyzed",
		logger.String("upload_id", id),
		logger.String("filename", filepath.Base(media.Filename)),
		logger.Int("candidates", len(candidates)),
		logger.Bool("detected", sel != nil),
		logger.Duration("elapsed", elapsed))
	if sel != nil {
		u.metrics.RecordDetection(sel.Species, detection.NormalizeCondition(sel.Condition))
		u.emit(Event{Type: EventDetection, SessionID: id, Source: reporting.SourceUpload, Time: sel.SelectedAt, Detection: sel})
	}
	return sel, nil
}

// Current returns the selected detection of the last analysis.
func (u *UploadSession) Current() *detection.Selected {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current
}

// SubmitReport reports the analyzed upload. Without a detection it fails with
// ErrNoDetectionToReport before any network call. Success clears the upload;
// failure keeps it for a retry.
func (u *UploadSession) SubmitReport(ctx context.Context, draft reporting.Draft) (reporting.Receipt, error) {
	u.mu.Lock()
	if u.current == nil || u.media == nil {
		u.mu.Unlock()
		return reporting.Receipt{}, stateError(ErrNoDetectionToReport, GateIdle, "submit_upload_report")
	}
	if u.submitting {
		u.mu.Unlock()
		return reporting.Receipt{}, stateError(ErrInvalidTransition, GateSubmitting, "submit_upload_report")
	}
	u.submitting = true
	sel, media, id := u.current, *u.media, u.id
	u.mu.Unlock()

	report := reporting.Build(sel, draft, u.cfg.CurrentUserID, reporting.SourceUpload, mediaAttachment(media), u.clock.Now())

	start := time.Now()
	receipt, err := u.reporter.Submit(ctx, report)
	elapsed := time.Since(start)

	u.mu.Lock()
	u.submitting = false
	if err == nil && u.id == id {
		u.id, u.media, u.current = "", nil, nil
	}
	u.mu.Unlock()

	if err != nil {
		u.metrics.RecordReport(string(reporting.SourceUpload), "error", elapsed)
		u.emit(Event{Type: EventReportFailed, SessionID: id, Source: reporting.SourceUpload,
			Time: u.clock.Now(), Detection: sel, Report: &report, Err: err})
		return reporting.Receipt{}, submissionError(err)
	}

	u.metrics.RecordReport(string(reporting.SourceUpload), "success", elapsed)
	u.log.Info("upload sighting reported",
		logger.String("report_id", receipt.ReportID),
		logger.String("species", report.Species))
	u.emit(Event{Type: EventReportSubmitted, SessionID: id, Source: reporting.SourceUpload,
		Time: u.clock.Now(), Detection: sel, Report: &report, Receipt: &receipt})
	return receipt, nil
}

// Reset discards the analyzed upload.
func (u *UploadSession) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.id, u.media, u.current = "", nil, nil
}

// mediaAttachment inlines images and references videos by filename.
func mediaAttachment(m inference.Media) reporting.Attachment {
	name := filepath.Base(m.Filename)
	if m.Filename == "" {
		name = ""
	}
	if m.IsVideo() {
		return reporting.Attachment{Filename: name}
	}
	return reporting.Attachment{Filename: name, ContentType: m.ContentType, Data: m.Data}
}
