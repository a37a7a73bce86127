package mqtt

import (
	"time"

	"github.com/tphakala/wildwatch-go/internal/session"
)

// Topic suffixes below the configured prefix.
const (
	TopicDetections = "detections"
	TopicReports    = "reports"
	TopicSession    = "session"
)

// DetectionDTO is published for every selected detection.
//
// Field names are part of the MQTT contract consumed by automations.
type DetectionDTO struct {
	SessionID           string    `json:"sessionId"`
	Source              string    `json:"source"`
	Time                time.Time `json:"time"`
	Species             string    `json:"species"`
	CommonName          string    `json:"commonName,omitempty"`
	ScientificName      string    `json:"scientificName,omitempty"`
	Confidence          float64   `json:"confidence"`
	Condition           string    `json:"condition,omitempty"`
	ConditionConfidence float64   `json:"conditionConfidence,omitempty"`
	Conservation        string    `json:"conservationStatus,omitempty"`
}

// ReportDTO is published for every submitted or failed report. Image data is never
// included.
type ReportDTO struct {
	SessionID   string    `json:"sessionId"`
	Source      string    `json:"source"`
	Time        time.Time `json:"time"`
	Status      string    `json:"status"` // "submitted" or "failed"
	ReportID    string    `json:"reportId,omitempty"`
	Species     string    `json:"species"`
	CommonName  string    `json:"commonName,omitempty"`
	Confidence  float64   `json:"confidence"`
	Condition   string    `json:"condition,omitempty"`
	Urgency     string    `json:"urgency"`
	AnimalCount int       `json:"animalCount"`
	Location    string    `json:"location,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// SessionDTO is published for lifecycle events.
type SessionDTO struct {
	SessionID string    `json:"sessionId"`
	Event     string    `json:"event"`
	Time      time.Time `json:"time"`
}

// payloadFor maps an event to its topic suffix and DTO. ok is false for events that
// are not published.
func payloadFor(e session.Event) (topic string, payload any, ok bool) {
	switch e.Type {
	case session.EventDetection:
		if e.Detection == nil {
			return "", nil, false
		}
		d := e.Detection
		dto := DetectionDTO{
			SessionID:           e.SessionID,
			Source:              string(e.Source),
			Time:                e.Time.UTC(),
			Species:             d.Species,
			Confidence:          d.Confidence,
			Condition:           d.Condition,
			ConditionConfidence: d.ConditionConfidence,
		}
		if d.Info != nil {
			dto.CommonName = d.Info.CommonName
			dto.ScientificName = d.Info.ScientificName
			dto.Conservation = d.Info.ConservationStatus
		}
		return TopicDetections, dto, true

	case session.EventReportSubmitted, session.EventReportFailed:
		if e.Report == nil {
			return "", nil, false
		}
		r := e.Report
		dto := ReportDTO{
			SessionID:   e.SessionID,
			Source:      string(e.Source),
			Time:        e.Time.UTC(),
			Status:      "submitted",
			Species:     r.Species,
			Confidence:  r.Confidence,
			Condition:   r.Condition,
			Urgency:     r.Urgency,
			AnimalCount: r.AnimalCount,
			Location:    r.Location,
		}
		if r.SpeciesInfo != nil {
			dto.CommonName = r.SpeciesInfo.CommonName
		}
		if e.Receipt != nil {
			dto.ReportID = e.Receipt.ReportID
		}
		if e.Type == session.EventReportFailed {
			dto.Status = "failed"
			if e.Err != nil {
				dto.Error = e.Err.Error()
			}
		}
		return TopicReports, dto, true

	case session.EventSessionStarted, session.EventSessionStopped, session.EventCooldownEnded:
		return TopicSession, SessionDTO{SessionID: e.SessionID, Event: string(e.Type), Time: e.Time.UTC()}, true
	}
	return "", nil, false
}
