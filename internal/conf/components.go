package conf

import (
	"github.com/tphakala/wildwatch-go/internal/api"
	"github.com/tphakala/wildwatch-go/internal/capture"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/mqtt"
	"github.com/tphakala/wildwatch-go/internal/notification"
	"github.com/tphakala/wildwatch-go/internal/photostore"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// SessionConfig returns the explicit configuration for live and upload sessions.
func (s *Settings) SessionConfig() session.Config {
	return session.Config{
		InferenceEndpoint: s.Inference.Endpoint,
		ReportEndpoint:    s.Reporting.Endpoint,
		CurrentUserID:     s.Reporting.UserID,
		Model:             s.Inference.Model,
		SampleInterval:    s.Session.SampleInterval,
		InferenceTimeout:  s.Inference.Timeout,
		UploadTimeout:     s.Inference.UploadTimeout,
		ReportTimeout:     s.Reporting.Timeout,
		Cooldown:          s.Session.Cooldown,
		Filter: detection.FilterOptions{
			MinConfidence:          s.Session.MinConfidence,
			MinConditionConfidence: s.Session.MinConditionConfidence,
		},
		Capture: s.CaptureConfig(),
	}
}

// CaptureConfig returns the frame source configuration.
func (s *Settings) CaptureConfig() capture.Config {
	c := s.Camera
	return capture.Config{
		Kind:         c.Kind,
		Device:       c.Device,
		InputFormat:  c.InputFormat,
		FFmpegPath:   c.FFmpegPath,
		Width:        c.Width,
		Height:       c.Height,
		FrameRate:    c.FrameRate,
		Quality:      c.Quality,
		StartTimeout: c.StartTimeout,
	}
}

// NotificationConfig returns the sighting alert configuration.
func (s *Settings) NotificationConfig() notification.Config {
	n := s.Notification
	return notification.Config{
		Enabled:           n.Enabled,
		URLs:              n.URLs,
		Timeout:           n.Timeout,
		MinUrgency:        n.MinUrgency,
		RequestsPerMinute: n.RequestsPerMinute,
		Burst:             n.Burst,
		TitleTemplate:     n.TitleTemplate,
		MessageTemplate:   n.MessageTemplate,
	}
}

// MQTTConfig returns the MQTT client configuration.
func (s *Settings) MQTTConfig() mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.MQTT.Broker
	if s.MQTT.ClientID != "" {
		cfg.ClientID = s.MQTT.ClientID
	}
	if s.MQTT.TopicPrefix != "" {
		cfg.TopicPrefix = s.MQTT.TopicPrefix
	}
	cfg.Username = s.MQTT.Username
	cfg.Password = s.MQTT.Password
	cfg.QoS = byte(min(max(s.MQTT.QoS, 0), 2))
	cfg.Retain = s.MQTT.Retain
	return cfg
}

// PhotoStoreConfig returns the photo storage configuration.
func (s *Settings) PhotoStoreConfig() photostore.Config {
	p := s.PhotoStore
	return photostore.Config{
		Endpoint:  p.Endpoint,
		AccessKey: p.AccessKey,
		SecretKey: p.SecretKey,
		Bucket:    p.Bucket,
		Prefix:    p.Prefix,
		UseSSL:    p.UseSSL,
		PublicURL: p.PublicURL,
	}
}

// APIConfig returns the control API server configuration.
func (s *Settings) APIConfig() api.Config {
	cfg := api.DefaultConfig()
	if s.WebServer.Listen != "" {
		cfg.Listen = s.WebServer.Listen
	}
	cfg.Metrics = s.WebServer.Metrics
	return cfg
}
