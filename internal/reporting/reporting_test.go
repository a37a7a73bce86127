package reporting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
)

const testEndpoint = "https://reports.example.com/api/reports"

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func selected(condition string) *detection.Selected {
	return &detection.Selected{
		Candidate: detection.Candidate{
			Species:             "Roe Deer",
			Confidence:          0.83,
			Condition:           condition,
			ConditionConfidence: 64,
			Info:                &detection.SpeciesInfo{ScientificName: "Capreolus capreolus"},
		},
		SelectedAt: testNow,
	}
}

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	c, err := NewClient(Config{Endpoint: testEndpoint, HTTP: &httpclient.Config{Transport: mock}})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mock
}

func TestBuildDefaultsAndInlineImage(t *testing.T) {
	r := Build(selected("injured"), Draft{Location: "  North meadow "}, "user-7", SourceLive,
		Attachment{Filename: "photo-1.jpg", Data: []byte{0xFF, 0xD8}}, testNow)

	assert.Equal(t, "Roe Deer", r.Species)
	assert.Equal(t, "North meadow", r.Location)
	assert.Equal(t, testNow, r.Timestamp)
	assert.Equal(t, 1, r.AnimalCount)
	assert.Equal(t, UrgencyHigh, r.Urgency)
	assert.Equal(t, "user-7", r.ReporterID)
	assert.Equal(t, SourceLive, r.Source)
	assert.Equal(t, "photo-1.jpg", r.ImageFilename)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", r.ImageData)
	assert.Equal(t, "Capreolus capreolus", r.SpeciesInfo.ScientificName)
}

func TestBuildStoredReferenceAndExplicitFields(t *testing.T) {
	ts := testNow.Add(-time.Hour)
	r := Build(selected("Healthy"), Draft{Timestamp: ts, AnimalCount: 3, Urgency: "MEDIUM"}, "u", SourceUpload,
		Attachment{Filename: "sightings/2025/06/01/abc.jpg"}, testNow)

	assert.Equal(t, ts, r.Timestamp)
	assert.Equal(t, 3, r.AnimalCount)
	assert.Equal(t, UrgencyMedium, r.Urgency)
	assert.Equal(t, "sightings/2025/06/01/abc.jpg", r.ImageFilename)
	assert.Empty(t, r.ImageData)
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, UrgencyHigh, UrgencyFor("Injured"))
	assert.Equal(t, UrgencyMedium, UrgencyFor("malnourished"))
	assert.Equal(t, UrgencyLow, UrgencyFor("Healthy"))
	assert.Equal(t, UrgencyLow, UrgencyFor(""))
}

func TestSubmitSuccess(t *testing.T) {
	c, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		data, _ := io.ReadAll(req.Body)
		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "Roe Deer", got["species"])
		assert.Equal(t, "user-7", got["reporter_id"])
		assert.Equal(t, "live", got["source"])
		assert.Equal(t, "high", got["urgency"])
		return httpmock.NewStringResponse(http.StatusCreated,
			`{"success": true, "report_id": "rep-123", "message": "Report submitted"}`), nil
	})

	r := Build(selected("Injured"), Draft{}, "user-7", SourceLive, Attachment{Filename: "p.jpg"}, testNow)
	receipt, err := c.Submit(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "rep-123", receipt.ReportID)
	assert.Equal(t, "Report submitted", receipt.Message)
}

func TestSubmitFailuresCarryServerMessage(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantMsg   string
	}{
		{
			name:      "json error body",
			responder: httpmock.NewStringResponder(http.StatusBadRequest, `{"success": false, "error": "Missing required field: location"}`),
			wantMsg:   "Missing required field: location",
		},
		{
			name:      "plain text error",
			responder: httpmock.NewStringResponder(http.StatusServiceUnavailable, "database unavailable"),
			wantMsg:   "database unavailable",
		},
		{
			name:      "success false with 200",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"success": false, "message": "Duplicate report"}`),
			wantMsg:   "Duplicate report",
		},
		{
			name:      "transport error",
			responder: httpmock.NewErrorResponder(io.ErrClosedPipe),
			wantMsg:   "closed pipe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testEndpoint, tt.responder)

			_, err := c.Submit(context.Background(), Build(selected(""), Draft{}, "u", SourceLive, Attachment{}, testNow))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSubmissionFailed)

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.True(t, strings.Contains(subErr.Message, tt.wantMsg), subErr.Message)
		})
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: " "})
	require.Error(t, err)
}
