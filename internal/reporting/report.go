// Package reporting builds sighting reports and submits them to the reporting backend.
package reporting

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/tphakala/wildwatch-go/internal/detection"
)

// Urgency levels understood by the reporting backend.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Source identifies which flow produced a report.
type Source string

const (
	SourceLive   Source = "live"
	SourceUpload Source = "upload"
)

// Draft holds the user-entered fields of a sighting report.
type Draft struct {
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location"`
	AnimalCount int       `json:"animal_count"`
	Behavior    string    `json:"behavior"`
	Notes       string    `json:"notes"`
	Contact     string    `json:"contact"`
	Urgency     string    `json:"urgency"`
}

// Attachment references the evidence for a report: either an object key in the photo
// store or the raw JPEG bytes, which are inlined as a data URI.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Report is the payload posted to the reporting endpoint.
type Report struct {
	Species             string                 `json:"species"`
	Confidence          float64                `json:"confidence"`
	Condition           string                 `json:"condition,omitempty"`
	ConditionConfidence float64                `json:"condition_confidence,omitempty"`
	SpeciesInfo         *detection.SpeciesInfo `json:"species_info,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	AnimalCount int       `json:"animal_count"`
	Behavior    string    `json:"behavior,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Contact     string    `json:"contact,omitempty"`
	Urgency     string    `json:"urgency"`

	ReporterID    string `json:"reporter_id"`
	Source        Source `json:"source"`
	ImageFilename string `json:"image_filename,omitempty"`
	ImageData     string `json:"image_data,omitempty"`
}

// Build merges the draft with the selected detection and evidence reference.
// Empty draft fields get defaults: timestamp now, one animal, urgency from condition.
func Build(sel *detection.Selected, draft Draft, reporterID string, source Source, att Attachment, now time.Time) Report {
	r := Report{
		Species:             sel.Species,
		Confidence:          sel.Confidence,
		Condition:           sel.Condition,
		ConditionConfidence: sel.ConditionConfidence,
		SpeciesInfo:         sel.Info,
		Timestamp:           draft.Timestamp,
		Location:            strings.TrimSpace(draft.Location),
		AnimalCount:         draft.AnimalCount,
		Behavior:            strings.TrimSpace(draft.Behavior),
		Notes:               strings.TrimSpace(draft.Notes),
		Contact:             strings.TrimSpace(draft.Contact),
		Urgency:             normalizeUrgency(draft.Urgency),
		ReporterID:          reporterID,
		Source:              source,
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.AnimalCount <= 0 {
		r.AnimalCount = 1
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyFor(sel.Condition)
	}

	switch {
	case att.Filename != "" && len(att.Data) == 0:
		r.ImageFilename = att.Filename
	case len(att.Data) > 0:
		contentType := att.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		r.ImageFilename = att.Filename
		r.ImageData = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(att.Data)
	}
	return r
}

// UrgencyFor derives a default urgency from an animal condition.
func UrgencyFor(condition string) string {
	switch detection.NormalizeCondition(condition) {
	case detection.ConditionInjured:
		return UrgencyHigh
	case detection.ConditionMalnourished:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func normalizeUrgency(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyMedium:
		return UrgencyMedium
	case UrgencyHigh:
		return UrgencyHigh
	default:
		return ""
	}
}
