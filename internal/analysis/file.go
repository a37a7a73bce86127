package analysis

import (
	"context"
	"time"

	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// FileResult is the outcome of analyzing one media file.
type FileResult struct {
	File      string              `json:"file"`
	Detection *detection.Selected `json:"detection,omitempty"`
	Receipt   *reporting.Receipt  `json:"receipt,omitempty"`
	Elapsed   time.Duration       `json:"elapsed_ns"`
}

// FileAnalysis analyzes an image or video file through the upload path. When draft is
// non-nil and something was detected, a report is submitted as well. No detection with
// a draft fails with ErrNoDetectionToReport.
func FileAnalysis(ctx context.Context, settings *conf.Settings, info *buildinfo.Info, path string, draft *reporting.Draft, opts ...Option) (FileResult, error) {
	log := GetLogger()
	result := FileResult{File: path}

	media, err := inference.ReadMediaFile(path, inference.DefaultMaxMediaBytes)
	if err != nil {
		return result, err
	}

	// MQTT is for live nodes; a one-shot run must not wait on a broker.
	local := *settings
	local.MQTT.Enabled = false

	comps, err := NewComponents(ctx, &local, info, opts...)
	if err != nil {
		return result, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		comps.Close(closeCtx)
	}()

	uploads, err := session.NewUploadSession(local.SessionConfig(), comps.SessionOptions()...)
	if err != nil {
		return result, err
	}

	start := time.Now()
	sel, err := uploads.Analyze(ctx, media)
	result.Elapsed = time.Since(start)
	if err != nil {
		return result, err
	}
	result.Detection = sel

	if sel != nil {
		log.Info("file analyzed",
			logger.String("file", media.Filename),
			logger.String("species", sel.Species),
			logger.Float64("confidence", sel.Confidence),
			logger.Duration("elapsed", result.Elapsed))
	} else {
		log.Info("file analyzed, nothing detected",
			logger.String("file", media.Filename),
			logger.Duration("elapsed", result.Elapsed))
	}

	if draft == nil {
		return result, nil
	}
	receipt, err := uploads.SubmitReport(ctx, *draft)
	if err != nil {
		return result, err
	}
	result.Receipt = &receipt
	return result, nil
}
