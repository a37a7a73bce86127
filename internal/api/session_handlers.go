package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// ReportRequest is the body of a report submission. Empty fields get defaults.
type ReportRequest = reporting.Draft

// ReportResponse is returned after a successful submission.
type ReportResponse struct {
	Receipt reporting.Receipt `json:"receipt"`
	State   *session.State    `json:"state,omitempty"`
}

// initSessionRoutes registers the live session endpoints.
func (s *Server) initSessionRoutes(g *echo.Group) {
	g.GET("", s.GetSession)
	g.POST("/start", s.StartSession)
	g.POST("/stop", s.StopSession)
	g.POST("/report/open", s.OpenReport)
	g.POST("/report/cancel", s.CancelReport)
	g.POST("/capture", s.CapturePhoto)
	g.POST("/retake", s.Retake)
	g.POST("/report", s.SubmitReport)
	g.GET("/photo", s.GetPhoto)
}

// GetSession handles GET /api/v1/session
func (s *Server) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// StartSession handles POST /api/v1/session/start
func (s *Server) StartSession(c echo.Context) error {
	if err := s.live.Start(c.Request().Context()); err != nil {
		return s.sessionError(c, err, "Failed to start the camera")
	}
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// StopSession handles POST /api/v1/session/stop
func (s *Server) StopSession(c echo.Context) error {
	if err := s.live.Stop(); err != nil {
		return s.sessionError(c, err, "Failed to stop the camera")
	}
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// OpenReport handles POST /api/v1/session/report/open
func (s *Server) OpenReport(c echo.Context) error {
	if err := s.live.OpenReport(); err != nil {
		return s.sessionError(c, err, "Cannot open a report")
	}
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// CancelReport handles POST /api/v1/session/report/cancel
func (s *Server) CancelReport(c echo.Context) error {
	if err := s.live.CancelReport(); err != nil {
		return s.sessionError(c, err, "Cannot cancel the report")
	}
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// CapturePhoto handles POST /api/v1/session/capture
func (s *Server) CapturePhoto(c echo.Context) error {
	photo, err := s.live.CapturePhoto()
	if err != nil {
		return s.sessionError(c, err, "Cannot capture a photo")
	}
	s.log.Debug("photo captured via API", logger.String("photo_id", photo.ID))
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// Retake handles POST /api/v1/session/retake
func (s *Server) Retake(c echo.Context) error {
	if err := s.live.Retake(); err != nil {
		return s.sessionError(c, err, "Cannot retake the photo")
	}
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

// SubmitReport handles POST /api/v1/session/report
func (s *Server) SubmitReport(c echo.Context) error {
	var draft ReportRequest
	if err := bindDraft(c, &draft); err != nil {
		return s.handleError(c, err, "Invalid report body", http.StatusBadRequest)
	}

	receipt, err := s.live.SubmitReport(c.Request().Context(), draft)
	if err != nil {
		return s.sessionError(c, err, "Report submission failed")
	}
	st := s.live.Snapshot()
	return c.JSON(http.StatusOK, ReportResponse{Receipt: receipt, State: &st})
}

// GetPhoto handles GET /api/v1/session/photo and serves the captured JPEG.
func (s *Server) GetPhoto(c echo.Context) error {
	photo, ok := s.live.Photo()
	if !ok {
		return s.handleError(c, session.ErrCaptureNotReady, "No photo has been captured", http.StatusNotFound)
	}
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(photo.JPEG)))
	return c.Blob(http.StatusOK, "image/jpeg", photo.JPEG)
}

// bindDraft accepts an empty body as an empty draft.
func bindDraft(c echo.Context, draft *reporting.Draft) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := c.Bind(draft); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if draft.AnimalCount < 0 {
		return errors.Newf("animal_count must not be negative").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	switch draft.Urgency {
	case "", reporting.UrgencyLow, reporting.UrgencyMedium, reporting.UrgencyHigh:
	default:
		return errors.Newf("urgency must be low, medium or high").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
