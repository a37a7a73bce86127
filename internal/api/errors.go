package api

import (
	"crypto/rand"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	Kind          string `json:"kind,omitempty"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		Kind:          errorKind(err),
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates an identifier for matching responses to log lines.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoDetectionToReport),
		errors.Is(err, session.ErrCaptureNotReady),
		errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrReportSubmissionFailed),
		errors.Is(err, session.ErrInferenceTransport):
		return http.StatusBadGateway
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorKind names the session error for clients that branch on it.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrNoDetectionToReport):
		return "no_detection_to_report"
	case errors.Is(err, session.ErrCaptureNotReady):
		return "capture_not_ready"
	case errors.Is(err, session.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, session.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, session.ErrReportSubmissionFailed):
		return "report_submission_failed"
	case errors.Is(err, session.ErrInferenceTransport):
		return "inference_transport_error"
	}
	return ""
}

// handleError logs err and writes the JSON error response.
func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Info("API request rejected", fields...)
	}
	return c.JSON(code, resp)
}

// sessionError maps a session error to its status code.
func (s *Server) sessionError(c echo.Context, err error, message string) error {
	return s.handleError(c, err, message, statusFor(err))
}
