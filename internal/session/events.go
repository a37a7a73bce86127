package session

import (
	"time"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// EventType identifies a session event.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventSessionStopped  EventType = "session_stopped"
	EventDetection       EventType = "detection"
	EventReportSubmitted EventType = "report_submitted"
	EventReportFailed    EventType = "report_failed"
	EventCooldownEnded   EventType = "cooldown_ended"
)

// Event is delivered to listeners after the state change it describes.
type Event struct {
	Type      EventType
	SessionID string
	Source    reporting.Source
	Time      time.Time
	Detection *detection.Selected
	Report    *reporting.Report
	Receipt   *reporting.Receipt
	Err       error
}

// Listener receives session events. OnEvent is called synchronously without
// controller locks held and must not block.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f(e).
func (f ListenerFunc) OnEvent(e Event) { f(e) }
