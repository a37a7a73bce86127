package session

import (
	"time"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// GateState names a report gate state.
type GateState string

const (
	GateIdle            GateState = "idle"
	GateAwaitingCapture GateState = "awaiting_capture"
	GatePhotoCaptured   GateState = "photo_captured"
	GateSubmitting      GateState = "submitting"
	GateCooldown        GateState = "cooldown"
)

// CapturedPhoto is a confirming still taken from the live source.
type CapturedPhoto struct {
	ID         string    `json:"id"`
	JPEG       []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// gate is the report gate state. Each state carries only the fields meaningful in it.
type gate interface {
	name() GateState
}

type idleGate struct{}

type awaitingCaptureGate struct {
	detection *detection.Selected
}

type photoCapturedGate struct {
	detection *detection.Selected
	photo     *CapturedPhoto
}

type submittingGate struct {
	detection *detection.Selected
	photo     *CapturedPhoto
}

type cooldownGate struct {
	until time.Time
}

func (*idleGate) name() GateState            { return GateIdle }
func (*awaitingCaptureGate) name() GateState { return GateAwaitingCapture }
func (*photoCapturedGate) name() GateState   { return GatePhotoCaptured }
func (*submittingGate) name() GateState      { return GateSubmitting }
func (*cooldownGate) name() GateState        { return GateCooldown }

// pinned returns the detection the open report refers to, if any.
func pinned(g gate) *detection.Selected {
	switch s := g.(type) {
	case *awaitingCaptureGate:
		return s.detection
	case *photoCapturedGate:
		return s.detection
	case *submittingGate:
		return s.detection
	}
	return nil
}

func photoOf(g gate) *CapturedPhoto {
	switch s := g.(type) {
	case *photoCapturedGate:
		return s.photo
	case *submittingGate:
		return s.photo
	}
	return nil
}

// State is a point-in-time view of the controller.
type State struct {
	SessionID       string              `json:"session_id,omitempty"`
	CameraActive    bool                `json:"camera_active"`
	Gate            GateState           `json:"gate"`
	Detection       *detection.Selected `json:"detection,omitempty"`
	ReportDetection *detection.Selected `json:"report_detection,omitempty"`
	Photo           *CapturedPhoto      `json:"photo,omitempty"`
	CooldownActive  bool                `json:"cooldown_active"`
	// CooldownRemainingMS is zero outside cooldown.
	CooldownRemainingMS int64              `json:"cooldown_remaining_ms"`
	LastReport          *reporting.Receipt `json:"last_report,omitempty"`
}
