package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/wildwatch-go/internal/api"
	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// shutdownGrace bounds draining of queued MQTT events on exit.
const shutdownGrace = 5 * time.Second

// RealtimeOptions tune a live run.
type RealtimeOptions struct {
	// AutoStart opens the camera immediately instead of waiting for the API.
	AutoStart bool
	// Ready, when set, receives the running controller once the node is up.
	Ready func(*session.Controller)
}

// RealtimeAnalysis runs the live node until ctx is cancelled: the detection session,
// the control API and the configured integrations. Without the API the camera is
// started immediately.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings, info *buildinfo.Info, ropts RealtimeOptions, opts ...Option) error {
	log := GetLogger()

	comps, err := NewComponents(ctx, settings, info, opts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		comps.Close(closeCtx)
	}()

	sessionCfg := settings.SessionConfig()
	controller, err := session.New(sessionCfg, comps.SessionOptions()...)
	if err != nil {
		return err
	}
	uploads, err := session.NewUploadSession(sessionCfg, comps.SessionOptions()...)
	if err != nil {
		return err
	}

	log.Info("starting wildwatch node",
		logger.String("version", info.GetVersion()),
		logger.String("camera", settings.Camera.Kind),
		logger.String("device", logger.RedactURL(settings.Camera.Device)),
		logger.String("inference", logger.RedactURL(settings.Inference.Endpoint)),
		logger.Duration("sample_interval", sessionCfg.SampleInterval),
		logger.Float64("min_confidence", sessionCfg.Filter.MinConfidence),
		logger.Bool("api", settings.WebServer.Enabled),
		logger.Bool("mqtt", comps.MQTT != nil),
		logger.Bool("notifications", comps.Notifier != nil),
		logger.Bool("photo_store", comps.Photos != nil))

	g, gctx := errgroup.WithContext(ctx)

	if settings.WebServer.Enabled {
		srv := api.New(settings.APIConfig(),
			api.WithLiveSession(controller),
			api.WithUploads(uploads),
			api.WithMetrics(comps.Metrics))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if comps.MQTT != nil {
		g.Go(func() error {
			comps.maintainMQTT(gctx)
			return nil
		})
	}

	if ropts.AutoStart || !settings.WebServer.Enabled {
		if err := controller.Start(gctx); err != nil {
			if !settings.WebServer.Enabled || !errors.Is(err, session.ErrDeviceUnavailable) {
				return stopAfter(g, err)
			}
			// the camera can still be started through the API once it is free
			log.Warn("camera unavailable at startup", logger.Error(err))
		}
	}

	if ropts.Ready != nil {
		ropts.Ready(controller)
	}

	g.Go(func() error {
		<-gctx.Done()
		return controller.Stop()
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("wildwatch node stopped with error", logger.Error(err))
		return err
	}
	log.Info("wildwatch node stopped")
	return nil
}

// stopAfter is used when startup fails after goroutines were launched. The caller's
// context stays live, so the group has to be cancelled through its first error.
func stopAfter(g *errgroup.Group, err error) error {
	g.Go(func() error { return err })
	_ = g.Wait()
	return err
}
