package inference

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
)

const testEndpoint = "https://inference.example.com/predict"

func newMockedClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	c, err := NewClient(Config{
		Endpoint: testEndpoint,
		Model:    "wildlife-v2",
		Timeout:  time.Second,
		HTTP:     &httpclient.Config{Transport: mock},
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mock
}

type stubEnricher struct{ calls int }

func (s *stubEnricher) Enrich(c []detection.Candidate) []detection.Candidate {
	s.calls++
	return c
}

func TestDetectSendsMultipartAndParsesEnvelope(t *testing.T) {
	enricher := &stubEnricher{}
	c, mock := newMockedClient(t, WithEnricher(enricher))

	mock.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		reader := multipart.NewReader(req.Body, params["boundary"])
		form, err := reader.ReadForm(1 << 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"wildlife-v2"}, form.Value["model"])
		require.Len(t, form.File["file"], 1)
		fh := form.File["file"][0]
		assert.Equal(t, "frame.jpg", fh.Filename)
		assert.Equal(t, "image/jpeg", fh.Header.Get("Content-Type"))
		f, err := fh.Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, data)

		return httpmock.NewStringResponse(http.StatusOK, `{
			"detections": [
				{"species": "Red Fox", "confidence": 0.91, "condition": "Healthy", "condition_confidence": 88.5,
				 "species_info": {"common_name": "Red Fox", "scientific_name": "Vulpes vulpes"}},
				{"species": "Coyote", "confidence": 0.12}
			]
		}`), nil
	})

	got, err := c.Detect(context.Background(), JPEGFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Red Fox", got[0].Species)
	assert.InDelta(t, 0.91, got[0].Confidence, 1e-9)
	assert.InDelta(t, 88.5, got[0].ConditionConfidence, 1e-9)
	require.NotNil(t, got[0].Info)
	assert.Equal(t, "Vulpes vulpes", got[0].Info.ScientificName)
	assert.Equal(t, 1, enricher.calls)
}

func TestDetectFailuresWrapTransportSentinel(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "model crashed")},
		{"malformed json", httpmock.NewStringResponder(http.StatusOK, "{not json")},
		{"error envelope", httpmock.NewStringResponder(http.StatusOK, `{"error": "no file uploaded"}`)},
		{"connection refused", httpmock.NewErrorResponder(io.ErrUnexpectedEOF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testEndpoint, tt.responder)

			_, err := c.Detect(context.Background(), JPEGFrame([]byte{1, 2, 3}))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransport)
		})
	}
}

func TestDetectTimeout(t *testing.T) {
	c, mock := newMockedClient(t)
	c.timeout = 20 * time.Millisecond
	mock.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := c.Detect(context.Background(), JPEGFrame([]byte{1}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
}

func TestDetectEmptyPayloadMakesNoRequest(t *testing.T) {
	c, mock := newMockedClient(t)
	_, err := c.Detect(context.Background(), Media{})
	require.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestParseResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{"envelope", `{"detections":[{"species":"Otter","confidence":0.5}]}`, []string{"Otter"}, false},
		{"single object", `{"species":"Beaver","confidence":0.7,"condition":"Injured"}`, []string{"Beaver"}, false},
		{"bare array", `[{"species":"Mink","confidence":0.4},{"confidence":0.9}]`, []string{"Mink"}, false},
		{"empty envelope", `{"detections":[]}`, nil, false},
		{"empty body", ``, nil, false},
		{"null", `null`, nil, false},
		{"error only", `{"error":"bad image"}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, c := range got {
				names = append(names, c.Species)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestMediaIsVideo(t *testing.T) {
	assert.True(t, Media{ContentType: "video/mp4"}.IsVideo())
	assert.False(t, JPEGFrame(nil).IsVideo())
}

type countingReporter struct{ calls int }

func (r *countingReporter) ReportError(*errors.EnhancedError) { r.calls++ }
func (r *countingReporter) IsEnabled() bool                 { return true }

func TestBackendOutageTelemetryIsRateLimited(t *testing.T) {
	r := &countingReporter{}
	errors.SetTelemetryReporter(r)
	t.Cleanup(func() { errors.SetTelemetryReporter(nil) })

	c, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "model offline"))

	for range 30 {
		_, err := c.Detect(context.Background(), JPEGFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9}))
		require.ErrorIs(t, err, ErrTransport)
	}
	assert.Equal(t, errors.RateLimitEvents, r.calls)
}
