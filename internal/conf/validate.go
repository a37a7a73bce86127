// conf/validate.go

package conf

import (
	"fmt"
	"strings"

	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct. The reporter identity is not
// required here; sessions refuse to start without it.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	for _, check := range []func(*Settings) []string{
		validateEndpoints,
		validateSessionSettings,
		validateCameraSettings,
		validatePhotoStoreSettings,
		validateNotificationSettings,
		validateMQTTSettings,
		validateWebServerSettings,
	} {
		ve.Errors = append(ve.Errors, check(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateEndpoints(s *Settings) []string {
	var errs []string
	if err := checkHTTPURL(s.Inference.Endpoint); err != nil {
		errs = append(errs, fmt.Sprintf("inference.endpoint: %v", err))
	}
	if err := checkHTTPURL(s.Reporting.Endpoint); err != nil {
		errs = append(errs, fmt.Sprintf("reporting.endpoint: %v", err))
	}
	if s.Inference.Timeout <= 0 {
		errs = append(errs, "inference.timeout must be positive")
	}
	if s.Inference.UploadTimeout <= 0 {
		errs = append(errs, "inference.uploadtimeout must be positive")
	}
	if s.Reporting.Timeout <= 0 {
		errs = append(errs, "reporting.timeout must be positive")
	}
	return errs
}

func validateSessionSettings(s *Settings) []string {
	var errs []string
	if s.Session.SampleInterval <= 0 {
		errs = append(errs, "session.sampleinterval must be positive")
	}
	if s.Session.Cooldown <= 0 {
		errs = append(errs, "session.cooldown must be positive")
	}
	if s.Session.MinConfidence < 0 || s.Session.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("session.minconfidence must be between 0 and 1, got %v", s.Session.MinConfidence))
	}
	if s.Session.MinConditionConfidence < 0 || s.Session.MinConditionConfidence > 100 {
		errs = append(errs, fmt.Sprintf("session.minconditionconfidence must be between 0 and 100, got %v", s.Session.MinConditionConfidence))
	}
	return errs
}

func validateCameraSettings(s *Settings) []string {
	var errs []string
	c := s.Camera
	switch c.Kind {
	case "ffmpeg", "still":
	default:
		errs = append(errs, fmt.Sprintf("camera.kind must be ffmpeg or still, got %q", c.Kind))
	}
	if c.Device == "" {
		errs = append(errs, "camera.device is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Sprintf("camera resolution must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Sprintf("camera.quality must be between 1 and 100, got %d", c.Quality))
	}
	if c.FrameRate < 0 {
		errs = append(errs, "camera.framerate must not be negative")
	}
	return errs
}

func validatePhotoStoreSettings(s *Settings) []string {
	if !s.PhotoStore.Enabled {
		return nil
	}
	var errs []string
	if s.PhotoStore.Endpoint == "" {
		errs = append(errs, "photostore.endpoint is required when photo storage is enabled")
	}
	if s.PhotoStore.Bucket == "" {
		errs = append(errs, "photostore.bucket is required when photo storage is enabled")
	}
	return errs
}

func validateNotificationSettings(s *Settings) []string {
	n := s.Notification
	var errs []string
	switch n.MinUrgency {
	case "", reporting.UrgencyLow, reporting.UrgencyMedium, reporting.UrgencyHigh:
	default:
		errs = append(errs, fmt.Sprintf("notification.minurgency must be low, medium or high, got %q", n.MinUrgency))
	}
	if n.Enabled && len(n.URLs) == 0 {
		errs = append(errs, "notification.urls must list at least one service when notifications are enabled")
	}
	if n.RequestsPerMinute < 0 || n.Burst < 0 {
		errs = append(errs, "notification rate limits must not be negative")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	var errs []string
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when MQTT is enabled")
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS))
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	if s.WebServer.Enabled && s.WebServer.Listen == "" {
		return []string{"webserver.listen is required when the web server is enabled"}
	}
	return nil
}
