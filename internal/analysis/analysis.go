// Package analysis assembles the configured components and runs them, either as a
// long-running live node or as a one-shot analysis of a media file.
package analysis

import (
	"context"
	"time"

	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/mqtt"
	"github.com/tphakala/wildwatch-go/internal/notification"
	"github.com/tphakala/wildwatch-go/internal/observability"
	"github.com/tphakala/wildwatch-go/internal/photostore"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
	"github.com/tphakala/wildwatch-go/internal/species"
)

// mqttCheckInterval is how often a disconnected broker is retried.
const mqttCheckInterval = 30 * time.Second

// GetLogger returns the analysis module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Components are the long-lived collaborators shared by the live controller and the
// upload session.
type Components struct {
	Metrics   *observability.Metrics
	Species   *species.Cache
	Detector  *inference.Client
	Reporter  *reporting.Client
	Photos    *photostore.MinioStore
	Notifier  *notification.Notifier
	MQTT      mqtt.Client
	Publisher *mqtt.Publisher

	log logger.Logger
}

// Option customises component construction.
type Option func(*options)

type options struct {
	http       *httpclient.Config
	mqttClient mqtt.Client
}

// WithHTTPConfig overrides the HTTP client used for inference and reports.
func WithHTTPConfig(cfg *httpclient.Config) Option {
	return func(o *options) { o.http = cfg }
}

// WithMQTTClient replaces the broker client built from settings.
func WithMQTTClient(c mqtt.Client) Option {
	return func(o *options) { o.mqttClient = c }
}

// NewComponents builds every enabled component from settings. Optional integrations
// that fail to connect are logged and retried later; configuration errors are returned.
func NewComponents(ctx context.Context, settings *conf.Settings, info *buildinfo.Info, opts ...Option) (*Components, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.http == nil {
		cfg := httpclient.DefaultConfig()
		o.http = &cfg
	}
	httpCfg := *o.http
	if httpCfg.UserAgent == "" {
		httpCfg.UserAgent = info.UserAgent()
	}

	c := &Components{log: GetLogger()}
	var err error

	if c.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, err
	}

	c.Species = species.NewCache(settings.Species.CacheTTL)
	if path := settings.Species.CatalogPath; path != "" {
		n, err := c.Species.LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		c.log.Info("species catalog loaded", logger.String("path", path), logger.Int("entries", n))
	}

	c.Detector, err = inference.NewClient(inference.Config{
		Endpoint: settings.Inference.Endpoint,
		Model:    settings.Inference.Model,
		Timeout:  max(settings.Inference.Timeout, settings.Inference.UploadTimeout),
		HTTP:     &httpCfg,
	}, inference.WithEnricher(c.Species))
	if err != nil {
		return nil, err
	}

	c.Reporter, err = reporting.NewClient(reporting.Config{
		Endpoint: settings.Reporting.Endpoint,
		Timeout:  settings.Reporting.Timeout,
		HTTP:     &httpCfg,
	})
	if err != nil {
		c.Close(ctx)
		return nil, err
	}

	if settings.PhotoStore.Enabled {
		if c.Photos, err = photostore.NewMinioStore(settings.PhotoStoreConfig()); err != nil {
			c.Close(ctx)
			return nil, err
		}
	}

	if settings.Notification.Enabled {
		c.Notifier, err = notification.New(settings.NotificationConfig(), notification.WithMetrics(c.Metrics.Notification))
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
	}

	if settings.MQTT.Enabled {
		mqttCfg := settings.MQTTConfig()
		c.MQTT = o.mqttClient
		if c.MQTT == nil {
			if c.MQTT, err = mqtt.NewClient(mqttCfg, c.Metrics.MQTT); err != nil {
				c.Close(ctx)
				return nil, err
			}
		}
		if err := c.MQTT.Connect(ctx); err != nil {
			c.log.Warn("MQTT broker unreachable, will retry",
				logger.String("broker", logger.RedactURL(mqttCfg.Broker)),
				logger.Error(err))
		}
		c.Publisher = mqtt.NewPublisher(c.MQTT, mqttCfg.TopicPrefix)
	}

	return c, nil
}

// Listeners returns the enabled session event listeners.
func (c *Components) Listeners() []session.Listener {
	var ls []session.Listener
	if c.Notifier != nil {
		ls = append(ls, c.Notifier)
	}
	if c.Publisher != nil {
		ls = append(ls, c.Publisher)
	}
	return ls
}

// SessionOptions wires the components into a session.
func (c *Components) SessionOptions() []session.Option {
	opts := []session.Option{
		session.WithDetector(c.Detector),
		session.WithReporter(c.Reporter),
		session.WithMetrics(c.Metrics.Session),
		session.WithListeners(c.Listeners()...),
	}
	if c.Photos != nil {
		opts = append(opts, session.WithPhotoStore(c.Photos))
	}
	return opts
}

// maintainMQTT reconnects the broker client until ctx is done. Paho reconnects
// dropped sessions itself; this covers a broker that was down at startup.
func (c *Components) maintainMQTT(ctx context.Context) {
	if c.MQTT == nil {
		return
	}
	ticker := time.NewTicker(mqttCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.MQTT.IsConnected() {
				continue
			}
			if err := c.MQTT.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Debug("MQTT reconnect attempt failed", logger.Error(err))
			}
		}
	}
}

// Close drains the publishers and releases connections. Pending MQTT messages get
// until ctx expires.
func (c *Components) Close(ctx context.Context) {
	if c.Publisher != nil {
		c.Publisher.Close(ctx)
	}
	if c.MQTT != nil {
		c.MQTT.Disconnect()
	}
	if c.Notifier != nil {
		c.Notifier.Close()
	}
	if c.Reporter != nil {
		c.Reporter.Close()
	}
	if c.Detector != nil {
		c.Detector.Close()
	}
}
