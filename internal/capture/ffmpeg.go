package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// stderrLimit caps how much ffmpeg diagnostic output is kept for error messages.
const stderrLimit = 4 << 10

// FFmpegSource reads an MJPEG stream from an ffmpeg child process and keeps the latest
// frame. When ffmpeg exits on its own the frame is dropped and the process is restarted
// with exponential backoff until Stop.
type FFmpegSource struct {
	cfg Config
	log logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	latest   Frame
	running  bool
	restarts int
}

// ffmpegProcess is one ffmpeg run and its frame reader.
type ffmpegProcess struct {
	cmd    *exec.Cmd
	stderr *limitedBuffer
	// first is closed on the first decodable frame, done when the reader exits.
	first chan struct{}
	done  chan struct{}
}

func (p *ffmpegProcess) producedFrames() bool {
	select {
	case <-p.first:
		return true
	default:
		return false
	}
}

// NewFFmpegSource creates an unstarted ffmpeg source.
func NewFFmpegSource(cfg Config) *FFmpegSource {
	cfg.applyDefaults()
	return &FFmpegSource{cfg: cfg, log: GetLogger().Module("ffmpeg")}
}

// buildArgs returns the ffmpeg arguments for a fixed resolution MJPEG pipe.
func (s *FFmpegSource) buildArgs() []string {
	size := fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height)
	var args []string
	args = append(args, "-hide_banner", "-loglevel", "error", "-nostdin")
	switch s.cfg.InputFormat {
	case "":
	case "rtsp":
		args = append(args, "-rtsp_transport", "tcp")
	default:
		args = append(args, "-f", s.cfg.InputFormat, "-video_size", size)
	}
	args = append(args,
		"-i", s.cfg.Device,
		"-an",
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d", strconv.FormatFloat(s.cfg.FrameRate, 'f', -1, 64), s.cfg.Width, s.cfg.Height),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", strconv.Itoa(qualityToQScale(s.cfg.Quality)),
		"pipe:1",
	)
	return args
}

// qualityToQScale maps JPEG quality 1-100 onto ffmpeg's mjpeg qscale 31-2.
func qualityToQScale(quality int) int {
	q := 31 - (quality*29)/100
	return max(2, min(31, q))
}

// preflight checks the binary and local device before spawning anything.
func (s *FFmpegSource) preflight() error {
	if _, err := exec.LookPath(s.cfg.FFmpegPath); err != nil {
		return deviceUnavailable(fmt.Errorf("%w: ffmpeg not found at %q: %w", ErrDeviceUnavailable, s.cfg.FFmpegPath, err), s.cfg.Device)
	}
	if s.cfg.Device == "" {
		return deviceUnavailable(fmt.Errorf("%w: no capture device configured", ErrDeviceUnavailable), s.cfg.Device)
	}
	if strings.HasPrefix(s.cfg.Device, "/dev/") {
		f, err := os.Open(s.cfg.Device)
		if err != nil {
			return deviceUnavailable(fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), s.cfg.Device)
		}
		_ = f.Close()
	}
	return nil
}

// Start spawns ffmpeg and waits until the first frame arrives, the process exits, or
// StartTimeout elapses. An early exit is reported as ErrDeviceUnavailable.
func (s *FFmpegSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if err := s.preflight(); err != nil {
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	proc, err := s.spawn(runCtx)
	if err != nil {
		cancel()
		s.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.latest = Frame{}
	s.restarts = 0
	s.running = true
	s.mu.Unlock()

	s.log.Info("ffmpeg capture started",
		logger.String("device", logger.RedactURL(s.cfg.Device)),
		logger.Int("pid", proc.cmd.Process.Pid),
		logger.Int("width", s.cfg.Width),
		logger.Int("height", s.cfg.Height))

	go s.supervise(runCtx, proc, done)

	timer := time.NewTimer(s.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case <-proc.first:
		return nil
	case <-proc.done:
		if proc.producedFrames() {
			return nil
		}
		// Stop waits for the process, so stderr is complete afterwards
		_ = s.Stop()
		msg := proc.stderr.String()
		return deviceUnavailable(fmt.Errorf("%w: ffmpeg exited before the first frame: %s", ErrDeviceUnavailable, msg), s.cfg.Device)
	case <-timer.C:
		s.log.Warn("no frame received yet, continuing",
			logger.Duration("waited", s.cfg.StartTimeout))
		return nil
	case <-ctx.Done():
		_ = s.Stop()
		return ctx.Err()
	}
}

// spawn starts one ffmpeg process and its frame reader.
func (s *FFmpegSource) spawn(ctx context.Context) (*ffmpegProcess, error) {
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, s.buildArgs()...) //nolint:gosec // G204: path from validated settings, args built internally
	setupProcessGroup(cmd)
	cmd.WaitDelay = 2 * time.Second
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create stdout pipe: %w", err)).
			Component("capture").
			Category(errors.CategoryCommandExecution).
			Build()
	}
	if err := cmd.Start(); err != nil {
		return nil, deviceUnavailable(fmt.Errorf("%w: failed to start ffmpeg: %w", ErrDeviceUnavailable, err), s.cfg.Device)
	}

	proc := &ffmpegProcess{cmd: cmd, stderr: stderr, first: make(chan struct{}), done: make(chan struct{})}
	go s.readFrames(stdout, proc)
	return proc, nil
}

// supervise waits for ffmpeg to exit and restarts it until ctx is cancelled. A run that
// produced frames resets the backoff.
func (s *FFmpegSource) supervise(ctx context.Context, proc *ffmpegProcess, done chan struct{}) {
	defer close(done)
	backoff := s.cfg.RestartBackoff
	for {
		<-proc.done
		// exit status is expected to be non-zero after cancellation
		waitErr := proc.cmd.Wait()
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.latest = Frame{}
		s.restarts++
		restarts := s.restarts
		s.mu.Unlock()

		if proc.producedFrames() {
			backoff = s.cfg.RestartBackoff
		}
		s.log.Warn("ffmpeg exited unexpectedly, frame dropped",
			logger.String("device", logger.RedactURL(s.cfg.Device)),
			logger.String("stderr", proc.stderr.String()),
			logger.Int("restarts", restarts),
			logger.Duration("backoff", backoff),
			logger.Error(waitErr))

		for {
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, s.cfg.MaxRestartBackoff)
			next, err := s.spawn(ctx)
			if err == nil {
				proc = next
				s.log.Info("ffmpeg capture restarted", logger.Int("pid", next.cmd.Process.Pid))
				break
			}
			s.log.Warn("ffmpeg restart failed", logger.Error(err), logger.Duration("backoff", backoff))
		}
	}
}

// sleepCtx waits for d and reports false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *FFmpegSource) readFrames(stdout io.Reader, proc *ffmpegProcess) {
	defer close(proc.done)
	var once sync.Once
	scanner := newFrameScanner(stdout)
	for scanner.Scan() {
		data := bytes.Clone(scanner.Bytes())
		w, h, err := Dimensions(data)
		if err != nil {
			s.log.Trace("dropping undecodable frame", logger.Error(err))
			continue
		}
		s.mu.Lock()
		s.latest = Frame{JPEG: data, Width: w, Height: h, CapturedAt: time.Now()}
		s.mu.Unlock()
		once.Do(func() { close(proc.first) })
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("frame reader stopped", logger.Error(err))
	}
}

// Latest returns the most recent frame of the running process.
func (s *FFmpegSource) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest.Valid()
}

// Restarts returns how many times ffmpeg exited on its own since Start.
func (s *FFmpegSource) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Stop terminates ffmpeg, waits for the reader and supervisor to exit, then drops the
// frame. Idempotent.
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.latest = Frame{}
	s.mu.Unlock()

	s.log.Info("ffmpeg capture stopped", logger.String("device", logger.RedactURL(s.cfg.Device)))
	return nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
