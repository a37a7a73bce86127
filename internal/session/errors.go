package session

import (
	"github.com/tphakala/wildwatch-go/internal/capture"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Errors returned by the controller. Match them with errors.Is.
var (
	// ErrDeviceUnavailable means the camera could not be opened; the session did not start.
	ErrDeviceUnavailable = capture.ErrDeviceUnavailable
	// ErrCaptureNotReady means the source has no valid frame yet. State is unchanged.
	ErrCaptureNotReady = errors.NewStd("capture not ready: no valid frame yet")
	// ErrInferenceTransport wraps failed or timed out inference requests.
	ErrInferenceTransport = inference.ErrTransport
	// ErrNoDetectionToReport is returned before any network call when there is nothing to report.
	ErrNoDetectionToReport = errors.NewStd("no detection to report")
	// ErrReportSubmissionFailed wraps rejected or unreachable report submissions.
	// Use errors.As with *reporting.SubmissionError for the server message.
	ErrReportSubmissionFailed = reporting.ErrSubmissionFailed
	// ErrInvalidTransition is returned for report gate actions not allowed in the current state.
	ErrInvalidTransition = errors.NewStd("action not allowed in current report state")
)

func stateError(sentinel error, gate GateState, action string) error {
	category := errors.CategoryState
	if sentinel == ErrNoDetectionToReport {
		category = errors.CategoryValidation
	}
	return errors.New(sentinel).
		Component("session").
		Category(category).
		Context("gate_state", string(gate)).
		Context("action", action).
		Build()
}
