package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tphakala/wildwatch-go/internal/logger"
)

// StillSource serves a single image file as the camera feed. It is used for
// bench setups and for driving the controller without hardware.
type StillSource struct {
	cfg Config
	log logger.Logger

	mu      sync.Mutex
	frame   Frame
	running bool
}

// NewStillSource creates an unstarted still image source.
func NewStillSource(cfg Config) *StillSource {
	cfg.applyDefaults()
	return &StillSource{cfg: cfg, log: GetLogger().Module("still")}
}

// Start loads and normalizes the image. A missing or unreadable file is ErrDeviceUnavailable.
func (s *StillSource) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	data, err := os.ReadFile(s.cfg.Device)
	if err != nil {
		return deviceUnavailable(fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), s.cfg.Device)
	}
	jpg, err := NormalizeJPEG(data, s.cfg.Width, s.cfg.Height, s.cfg.Quality)
	if err != nil {
		return deviceUnavailable(fmt.Errorf("%w: cannot decode %s: %w", ErrDeviceUnavailable, s.cfg.Device, err), s.cfg.Device)
	}

	s.frame = Frame{JPEG: jpg, Width: s.cfg.Width, Height: s.cfg.Height, CapturedAt: time.Now()}
	s.running = true
	s.log.Info("still image source started",
		logger.String("path", s.cfg.Device),
		logger.Int("width", s.cfg.Width),
		logger.Int("height", s.cfg.Height))
	return nil
}

// Stop releases the image. Idempotent.
func (s *StillSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.frame = Frame{}
	s.log.Info("still image source stopped")
	return nil
}

// Latest returns the loaded image, stamped with the current time.
func (s *StillSource) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return Frame{}, false
	}
	f := s.frame
	f.CapturedAt = time.Now()
	return f, f.Valid()
}
