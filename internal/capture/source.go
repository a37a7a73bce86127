// Package capture provides the camera frame sources driven by the session controller.
// A source is started and stopped only by its owner and always delivers frames at the
// configured fixed resolution.
package capture

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// Default capture settings.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 720
	DefaultQuality = 85
)

// ErrDeviceUnavailable is returned when the camera device, its permissions or the
// capture tooling are missing.
var ErrDeviceUnavailable = errors.NewStd("camera device unavailable")

// GetLogger returns the capture module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("capture")
}

// Frame is one JPEG encoded camera frame.
type Frame struct {
	JPEG       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Valid reports whether the frame has usable dimensions and data.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.JPEG) > 0
}

// Source produces camera frames.
type Source interface {
	// Start acquires the device. It fails with ErrDeviceUnavailable when the device cannot be opened.
	Start(ctx context.Context) error
	// Stop releases the device. Idempotent.
	Stop() error
	// Latest returns the most recent frame; ok is false before the first valid frame.
	Latest() (frame Frame, ok bool)
}

// Config selects and configures a source.
type Config struct {
	// Kind is "ffmpeg" or "still".
	Kind string
	// Device is the input passed to ffmpeg (e.g. /dev/video0 or an rtsp:// URL)
	// or the image path for a still source.
	Device string
	// InputFormat is the ffmpeg demuxer (v4l2, avfoundation, dshow, rtsp). Empty lets ffmpeg probe.
	InputFormat string
	FFmpegPath  string
	Width       int
	Height      int
	// FrameRate is the rate ffmpeg emits frames at.
	FrameRate float64
	// Quality is the JPEG quality (1-100) used when re-encoding frames.
	Quality int
	// StartTimeout bounds how long Start waits for the first frame.
	StartTimeout time.Duration
	// RestartBackoff is the first delay before restarting an ffmpeg that exited,
	// doubled per failed attempt up to MaxRestartBackoff.
	RestartBackoff    time.Duration
	MaxRestartBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 2
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 5 * time.Second
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = 2 * time.Second
	}
	if c.MaxRestartBackoff < c.RestartBackoff {
		c.MaxRestartBackoff = max(time.Minute, c.RestartBackoff)
	}
}

// New builds the source selected by cfg.Kind.
func New(cfg Config) (Source, error) {
	cfg.applyDefaults()
	switch cfg.Kind {
	case "", "ffmpeg":
		return NewFFmpegSource(cfg), nil
	case "still", "file":
		return NewStillSource(cfg), nil
	default:
		return nil, errors.Newf("unknown capture source %q", cfg.Kind).
			Component("capture").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func deviceUnavailable(err error, device string) error {
	return errors.New(err).
		Component("capture").
		Category(errors.CategoryCapture).
		Context("device", logger.RedactURL(device)).
		Build()
}

// Dimensions reads the width and height from encoded image data without decoding pixels.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
