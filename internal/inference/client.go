// Package inference is the client for the remote wildlife inference service.
// A frame or uploaded media file is posted as multipart form data and the
// service answers with zero or more detection candidates.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// DefaultTimeout bounds a single inference request.
const DefaultTimeout = 10 * time.Second

// ErrTransport is the sentinel for failed, timed out, or unparseable inference requests.
var ErrTransport = errors.NewStd("inference request failed")

// GetLogger returns the inference module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference")
}

// Media is an image or video payload submitted for analysis.
type Media struct {
	Filename    string
	ContentType string
	Data        []byte
}

// JPEGFrame wraps an encoded camera frame.
func JPEGFrame(data []byte) Media {
	return Media{Filename: "frame.jpg", ContentType: "image/jpeg", Data: data}
}

// IsVideo reports whether the media is a video file.
func (m Media) IsVideo() bool {
	return strings.HasPrefix(m.ContentType, "video/")
}

// Detector analyzes media and returns the raw candidates.
type Detector interface {
	Detect(ctx context.Context, media Media) ([]detection.Candidate, error)
}

// Enricher post-processes candidates, e.g. filling species info from a cache.
type Enricher interface {
	Enrich(candidates []detection.Candidate) []detection.Candidate
}

// Config configures the inference client.
type Config struct {
	Endpoint string
	// Model is sent as the "model" form field when set.
	Model   string
	Timeout time.Duration
	HTTP    *httpclient.Config
}

// Client posts media to the inference endpoint. Safe for concurrent use.
type Client struct {
	endpoint string
	model    string
	timeout  time.Duration
	http     *httpclient.Client
	enricher Enricher
	log      logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithEnricher installs a candidate enricher.
func WithEnricher(e Enricher) Option {
	return func(c *Client) { c.enricher = e }
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.Newf("inference endpoint is required").
			Component("inference").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		http:     httpclient.New(cfg.HTTP),
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// Detect posts media to the service and returns its candidates. The configured timeout is
// applied on top of ctx. Every failure wraps ErrTransport.
func (c *Client) Detect(ctx context.Context, media Media) ([]detection.Candidate, error) {
	if len(media.Data) == 0 {
		return nil, c.transportError(fmt.Errorf("%w: empty media payload", ErrTransport), "encode", 0)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := c.encode(media)
	if err != nil {
		return nil, c.transportError(fmt.Errorf("%w: %w", ErrTransport, err), "encode", 0)
	}

	start := time.Now()
	resp, err := c.http.Post(ctx, c.endpoint, contentType, body)
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(fmt.Errorf("%w: %w", ErrTransport, err)).
			Component("inference").
			Category(category).
			NetworkContext(c.endpoint, c.timeout).
			Timing("detect", time.Since(start)).
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := httpclient.ReadErrorBody(resp)
		return nil, c.transportError(
			fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, msg), "status", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := httpclient.DecodeJSON(resp, &raw); err != nil {
		return nil, c.transportError(fmt.Errorf("%w: %w", ErrTransport, err), "decode", resp.StatusCode)
	}

	candidates, err := ParseResponse(raw)
	if err != nil {
		return nil, c.transportError(fmt.Errorf("%w: %w", ErrTransport, err), "decode", resp.StatusCode)
	}
	if c.enricher != nil {
		candidates = c.enricher.Enrich(candidates)
	}

	c.log.Debug("inference completed",
		logger.Int("candidates", len(candidates)),
		logger.Duration("elapsed", time.Since(start)),
		logger.Bool("video", media.IsVideo()))
	return candidates, nil
}

func (c *Client) transportError(err error, stage string, status int) error {
	b := errors.New(err).
		Component("inference").
		Category(errors.CategoryInference).
		Context("stage", stage)
	if status != 0 {
		b = b.Context("status_code", status)
	}
	return b.Build()
}

func (c *Client) encode(media Media) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := media.Filename
	if filename == "" {
		filename = "upload.bin"
	}
	contentType := media.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(media.Data); err != nil {
		return nil, "", fmt.Errorf("write media data: %w", err)
	}
	if c.model != "" {
		if err := writer.WriteField("model", c.model); err != nil {
			return nil, "", fmt.Errorf("write model field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
