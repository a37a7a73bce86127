package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// UploadFormField is the multipart field carrying the uploaded file.
const UploadFormField = "file"

// AnalyzeResponse is returned by POST /api/v1/uploads.
type AnalyzeResponse struct {
	Filename  string              `json:"filename"`
	Detected  bool                `json:"detected"`
	Detection *detection.Selected `json:"detection,omitempty"`
}

// initUploadRoutes registers upload analysis endpoints.
func (s *Server) initUploadRoutes(g *echo.Group) {
	g.POST("", s.AnalyzeUpload)
	g.GET("/current", s.GetUpload)
	g.POST("/report", s.SubmitUploadReport)
	g.POST("/reset", s.ResetUpload)
}

// AnalyzeUpload handles POST /api/v1/uploads (multipart, field "file").
func (s *Server) AnalyzeUpload(c echo.Context) error {
	media, err := s.readUpload(c)
	if err != nil {
		return s.handleError(c, err, "Invalid upload", http.StatusBadRequest)
	}

	sel, err := s.uploads.Analyze(c.Request().Context(), media)
	if err != nil {
		return s.sessionError(c, err, "Upload analysis failed")
	}
	return c.JSON(http.StatusOK, AnalyzeResponse{
		Filename:  filepath.Base(media.Filename),
		Detected:  sel != nil,
		Detection: sel,
	})
}

// GetUpload handles GET /api/v1/uploads/current
func (s *Server) GetUpload(c echo.Context) error {
	sel := s.uploads.Current()
	return c.JSON(http.StatusOK, AnalyzeResponse{Detected: sel != nil, Detection: sel})
}

// SubmitUploadReport handles POST /api/v1/uploads/report
func (s *Server) SubmitUploadReport(c echo.Context) error {
	var draft reporting.Draft
	if err := bindDraft(c, &draft); err != nil {
		return s.handleError(c, err, "Invalid report body", http.StatusBadRequest)
	}
	receipt, err := s.uploads.SubmitReport(c.Request().Context(), draft)
	if err != nil {
		return s.sessionError(c, err, "Report submission failed")
	}
	return c.JSON(http.StatusOK, ReportResponse{Receipt: receipt})
}

// ResetUpload handles POST /api/v1/uploads/reset
func (s *Server) ResetUpload(c echo.Context) error {
	s.uploads.Reset()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) readUpload(c echo.Context) (inference.Media, error) {
	fh, err := c.FormFile(UploadFormField)
	if err != nil {
		return inference.Media{}, uploadError("missing %q form file", UploadFormField)
	}
	if fh.Size > s.config.MaxUploadBytes {
		return inference.Media{}, uploadError("file exceeds %d bytes", s.config.MaxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return inference.Media{}, errors.New(err).Component("api").Category(errors.CategoryFileIO).Build()
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadBytes+1))
	if err != nil {
		return inference.Media{}, errors.New(err).Component("api").Category(errors.CategoryFileIO).Build()
	}
	return inference.NewMedia(fh.Filename, fh.Header.Get(echo.HeaderContentType), data, s.config.MaxUploadBytes)
}

func uploadError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}
