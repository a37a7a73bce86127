package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// DefaultTimeout bounds a single report submission.
const DefaultTimeout = 30 * time.Second

// ErrSubmissionFailed is the sentinel wrapped by every failed submission.
var ErrSubmissionFailed = errors.NewStd("report submission failed")

// GetLogger returns the reporting module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("reporting")
}

// SubmissionError carries the backend's explanation for a rejected report.
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("report submission failed (status %d): %s", e.StatusCode, e.Message)
	}
	return "report submission failed: " + e.Message
}

func (e *SubmissionError) Unwrap() error { return ErrSubmissionFailed }

// Receipt is the backend's acknowledgement of an accepted report.
type Receipt struct {
	ReportID string `json:"report_id"`
	Message  string `json:"message"`
}

// Submitter sends a report to the backend.
type Submitter interface {
	Submit(ctx context.Context, report Report) (Receipt, error)
}

// Config configures the reporting client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	HTTP     *httpclient.Config
}

// Client posts reports as JSON. Safe for concurrent use.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *httpclient.Client
	log      logger.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.Newf("report endpoint is required").
			Component("reporting").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		http:     httpclient.New(cfg.HTTP),
		log:      GetLogger(),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

type submitResponse struct {
	Success  bool   `json:"success"`
	ReportID string `json:"report_id"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

// Submit posts the report. Non-2xx statuses and bodies with success=false are
// returned as *SubmissionError carrying the server message.
func (c *Client) Submit(ctx context.Context, report Report) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.Post(ctx, c.endpoint, "application/json", report)
	if err != nil {
		return Receipt{}, c.fail(&SubmissionError{Message: err.Error()}, errors.CategoryNetwork, start)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := httpclient.ReadErrorBody(resp)
		return Receipt{}, c.fail(&SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(body, resp.Status),
		}, errors.CategoryReporting, start)
	}

	var out submitResponse
	if err := httpclient.DecodeJSON(resp, &out); err != nil {
		return Receipt{}, c.fail(&SubmissionError{StatusCode: resp.StatusCode, Message: err.Error()},
			errors.CategoryReporting, start)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		if msg == "" {
			msg = "backend rejected the report"
		}
		return Receipt{}, c.fail(&SubmissionError{StatusCode: resp.StatusCode, Message: msg},
			errors.CategoryReporting, start)
	}

	c.log.Info("report submitted",
		logger.String("report_id", out.ReportID),
		logger.String("species", report.Species),
		logger.String("source", string(report.Source)),
		logger.Duration("elapsed", time.Since(start)))
	return Receipt{ReportID: out.ReportID, Message: out.Message}, nil
}

func (c *Client) fail(err *SubmissionError, category errors.ErrorCategory, start time.Time) error {
	c.log.Warn("report submission failed",
		logger.Int("status_code", err.StatusCode),
		logger.String("message", err.Message))
	return errors.New(err).
		Component("reporting").
		Category(category).
		NetworkContext(c.endpoint, c.timeout).
		Timing("submit_report", time.Since(start)).
		Build()
}

// serverMessage extracts "error" or "message" from a JSON error body, else returns the raw text.
func serverMessage(body, status string) string {
	var out submitResponse
	if json.Unmarshal([]byte(body), &out) == nil {
		if out.Error != "" {
			return out.Error
		}
		if out.Message != "" {
			return out.Message
		}
	}
	if body != "" {
		return body
	}
	return status
}
