// Package detection holds the runtime domain model for wildlife detections and
// the pure result filter that turns inference candidates into a single selection.
package detection

import (
	"strings"
	"time"
)

// Known animal condition labels returned by the inference service.
const (
	ConditionHealthy      = "Healthy"
	ConditionInjured      = "Injured"
	ConditionMalnourished = "Malnourished"
	ConditionUnknown      = "Unknown"
)

// SpeciesInfo is descriptive metadata attached to a candidate. Carried forward unchanged.
type SpeciesInfo struct {
	CommonName         string `json:"common_name,omitempty" yaml:"common_name"`
	ScientificName     string `json:"scientific_name,omitempty" yaml:"scientific_name"`
	ConservationStatus string `json:"conservation_status,omitempty" yaml:"conservation_status"`
	Habitat            string `json:"habitat,omitempty" yaml:"habitat"`
	Diet               string `json:"diet,omitempty" yaml:"diet"`
	Lifespan           string `json:"lifespan,omitempty" yaml:"lifespan"`
	Description        string `json:"description,omitempty" yaml:"description"`
}

// IsZero reports whether no field is set.
func (s SpeciesInfo) IsZero() bool {
	return s == SpeciesInfo{}
}

// Candidate is one hypothesis returned by the inference service for a frame.
type Candidate struct {
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"` // 0.0-1.0

	Condition           string  `json:"condition,omitempty"`
	ConditionConfidence float64 `json:"condition_confidence,omitempty"` // 0-100

	Info *SpeciesInfo `json:"species_info,omitempty"`

	// ImageRef is an optional annotated image (URL or data URI) returned by the service.
	ImageRef string `json:"image,omitempty"`
}

// Selected is the candidate chosen by Select together with the time it was chosen.
type Selected struct {
	Candidate
	SelectedAt time.Time `json:"selected_at"`
}

// DisplayName returns the common name when known, else the raw species label.
func (s *Selected) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.Info != nil && s.Info.CommonName != "" {
		return s.Info.CommonName
	}
	return s.Species
}

// NeedsAttention reports whether the selected animal's condition suggests it may need help.
func (s *Selected) NeedsAttention() bool {
	if s == nil {
		return false
	}
	switch NormalizeCondition(s.Condition) {
	case ConditionInjured, ConditionMalnourished:
		return true
	}
	return false
}

// NormalizeCondition maps free-form condition labels onto the known set.
// Unrecognised non-empty labels become ConditionUnknown.
func NormalizeCondition(condition string) string {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case "healthy":
		return ConditionHealthy
	case "injured":
		return ConditionInjured
	case "malnourished":
		return ConditionMalnourished
	case "":
		return ""
	default:
		return ConditionUnknown
	}
}
