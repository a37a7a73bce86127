package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/wildwatch-go/internal/api/middleware"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/observability"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// LiveSession is the live camera session driven by the API.
type LiveSession interface {
	Start(ctx context.Context) error
	Stop() error
	Snapshot() session.State
	Photo() (session.CapturedPhoto, bool)
	OpenReport() error
	CancelReport() error
	CapturePhoto() (session.CapturedPhoto, error)
	Retake() error
	SubmitReport(ctx context.Context, draft reporting.Draft) (reporting.Receipt, error)
}

// Uploads analyzes and reports uploaded media.
type Uploads interface {
	Analyze(ctx context.Context, media inference.Media) (*detection.Selected, error)
	Current() *detection.Selected
	SubmitReport(ctx context.Context, draft reporting.Draft) (reporting.Receipt, error)
	Reset()
}

// Server is the control API HTTP server.
type Server struct {
	echo    *echo.Echo
	config  Config
	log     logger.Logger
	live    LiveSession
	uploads Uploads
	metrics *observability.Metrics

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLiveSession enables the /api/v1/session routes.
func WithLiveSession(l LiveSession) ServerOption {
	return func(s *Server) { s.live = l }
}

// WithUploads enables the /api/v1/uploads routes.
func WithUploads(u Uploads) ServerOption {
	return func(s *Server) { s.uploads = u }
}

// WithMetrics sets the observability metrics served on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// New creates the server and registers routes. It does not listen until Run.
func New(cfg Config, opts ...ServerOption) *Server {
	cfg.applyDefaults()
	s := &Server{
		config:    cfg,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log.Module("http"), func(c echo.Context) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	}))

	s.echo.Use(mw.Security(mw.SecurityConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		BodyLimit:      s.config.BodyLimit,
	})...)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthCheck)

	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	if s.live != nil {
		s.initSessionRoutes(v1.Group("/session"))
	}
	if s.uploads != nil {
		s.initUploadRoutes(v1.Group("/uploads"))
	}
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	resp := map[string]any{
		"status":         "healthy",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.live != nil {
		st := s.live.Snapshot()
		resp["camera_active"] = st.CameraActive
		resp["gate"] = st.Gate
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("listen", s.config.Listen).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	s.log.Info("control API listening", logger.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).Component("api").Category(errors.CategoryNetwork).Build()
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return err
	}
	<-errCh
	s.log.Info("control API stopped")
	return nil
}
