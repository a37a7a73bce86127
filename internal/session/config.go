package session

import (
	"time"

	"github.com/tphakala/wildwatch-go/internal/capture"
	"github.com/tphakala/wildwatch-go/internal/clock"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/observability/metrics"
	"github.com/tphakala/wildwatch-go/internal/photostore"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Default timings.
const (
	DefaultSampleInterval   = 2 * time.Second
	DefaultInferenceTimeout = 10 * time.Second
	DefaultUploadTimeout    = 60 * time.Second
	DefaultCooldown         = 10 * time.Second
)

// GetLogger returns the session module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}

// Config is the explicit configuration injected into a controller or upload session.
type Config struct {
	InferenceEndpoint string
	ReportEndpoint    string
	// CurrentUserID tags every report with the reporter's identity.
	CurrentUserID string
	// Model is forwarded to the inference service.
	Model string

	SampleInterval   time.Duration
	InferenceTimeout time.Duration
	// UploadTimeout bounds analysis of uploaded media, which may be video.
	UploadTimeout time.Duration
	ReportTimeout time.Duration
	Cooldown      time.Duration

	Filter  detection.FilterOptions
	Capture capture.Config
	HTTP    *httpclient.Config
}

func (c *Config) applyDefaults() {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.InferenceTimeout <= 0 {
		c.InferenceTimeout = DefaultInferenceTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = reporting.DefaultTimeout
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Filter.MinConfidence <= 0 {
		c.Filter.MinConfidence = detection.DefaultMinConfidence
	}
}

// deps are the collaborators shared by Controller and UploadSession.
type deps struct {
	detector  inference.Detector
	reporter  reporting.Submitter
	source    capture.Source
	clock     clock.Clock
	metrics   *metrics.SessionMetrics
	photos    photostore.Store
	listeners []Listener
}

// Option overrides a collaborator.
type Option func(*deps)

// WithDetector sets the inference client.
func WithDetector(d inference.Detector) Option {
	return func(o *deps) { o.detector = d }
}

// WithReporter sets the report submitter.
func WithReporter(r reporting.Submitter) Option {
	return func(o *deps) { o.reporter = r }
}

// WithSource sets the capture source.
func WithSource(s capture.Source) Option {
	return func(o *deps) { o.source = s }
}

// WithClock sets the clock driving the sampler and cooldown.
func WithClock(c clock.Clock) Option {
	return func(o *deps) { o.clock = c }
}

// WithMetrics records session metrics.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(o *deps) { o.metrics = m }
}

// WithPhotoStore uploads captured photos and reports reference the stored object.
func WithPhotoStore(s photostore.Store) Option {
	return func(o *deps) { o.photos = s }
}

// WithListeners subscribes listeners to session events.
func WithListeners(l ...Listener) Option {
	return func(o *deps) { o.listeners = append(o.listeners, l...) }
}

// resolve fills in the HTTP clients and clock not supplied through options.
func (o *deps) resolve(cfg *Config, needSource bool) error {
	if cfg.CurrentUserID == "" {
		return errors.Newf("current user id is required to tag reports").
			Component("session").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.detector == nil {
		c, err := inference.NewClient(inference.Config{
			Endpoint: cfg.InferenceEndpoint,
			Model:    cfg.Model,
			Timeout:  max(cfg.InferenceTimeout, cfg.UploadTimeout),
			HTTP:     cfg.HTTP,
		})
		if err != nil {
			return err
		}
		o.detector = c
	}
	if o.reporter == nil {
		c, err := reporting.NewClient(reporting.Config{
			Endpoint: cfg.ReportEndpoint,
			Timeout:  cfg.ReportTimeout,
			HTTP:     cfg.HTTP,
		})
		if err != nil {
			return err
		}
		o.reporter = c
	}
	if needSource && o.source == nil {
		s, err := capture.New(cfg.Capture)
		if err != nil {
			return err
		}
		o.source = s
	}
	return nil
}

func (o *deps) emit(e Event) {
	for _, l := range o.listeners {
		l.OnEvent(e)
	}
}
