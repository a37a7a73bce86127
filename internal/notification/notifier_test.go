package notification

import (
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/observability/metrics"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sentMessage struct {
	title   string
	message string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (s *fakeSender) Send(message string, params *stypes.Params) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, _ := params.Title()
	s.sent = append(s.sent, sentMessage{title: title, message: message})
	return []error{nil, s.err}
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func reportEvent(urgency string) session.Event {
	return session.Event{
		Type:   session.EventReportSubmitted,
		Source: reporting.SourceLive,
		Report: &reporting.Report{
			Species:     "Vulpes vulpes",
			Confidence:  0.874,
			Condition:   "Injured",
			Urgency:     urgency,
			AnimalCount: 1,
			Location:    "Ridge trail",
			Source:      reporting.SourceLive,
			Timestamp:   time.Date(2025, 5, 4, 6, 30, 0, 0, time.UTC),
			SpeciesInfo: &detection.SpeciesInfo{CommonName: "Red Fox", ScientificName: "Vulpes vulpes"},
		},
		Receipt: &reporting.Receipt{ReportID: "rpt-17"},
	}
}

func TestSightingAlertIsRenderedAndDelivered(t *testing.T) {
	s := &fakeSender{}
	n, err := New(Config{}, withSender(s))
	require.NoError(t, err)

	n.OnEvent(reportEvent(reporting.UrgencyHigh))
	n.OnEvent(session.Event{Type: session.EventDetection})
	n.Close()

	sent := s.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "URGENT: Red Fox sighting reported", sent[0].title)
	assert.Contains(t, sent[0].message, "Red Fox (Vulpes vulpes) reported with 87% confidence.")
	assert.Contains(t, sent[0].message, "Condition: Injured | Urgency: high | Animals: 1")
	assert.Contains(t, sent[0].message, "Location: Ridge trail")
	assert.Contains(t, sent[0].message, "(report rpt-17)")
}

func TestMinUrgencyFilter(t *testing.T) {
	s := &fakeSender{}
	n, err := New(Config{MinUrgency: reporting.UrgencyMedium}, withSender(s))
	require.NoError(t, err)

	n.OnEvent(reportEvent(reporting.UrgencyLow))
	n.OnEvent(reportEvent(reporting.UrgencyMedium))
	n.Close()

	sent := s.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Red Fox sighting reported", sent[0].title)
}

func TestRateLimitDropsExcessAlerts(t *testing.T) {
	s := &fakeSender{}
	m, err := metrics.NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	n, err := New(Config{RequestsPerMinute: 1, Burst: 2}, withSender(s), WithMetrics(m))
	require.NoError(t, err)

	for range 4 {
		n.OnEvent(reportEvent(reporting.UrgencyLow))
	}
	n.Close()

	assert.Len(t, s.messages(), 2)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RateLimited), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("shoutrrr", "success")), 0)
}

func TestSendReportsDeliveryErrors(t *testing.T) {
	s := &fakeSender{err: errors.NewStd("telegram: 401 unauthorized")}
	n, err := New(Config{}, withSender(s))
	require.NoError(t, err)
	defer n.Close()

	err = n.Send(t.Context(), "test", "hello")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestEventsAfterCloseAreIgnored(t *testing.T) {
	s := &fakeSender{}
	n, err := New(Config{}, withSender(s))
	require.NoError(t, err)
	n.Close()
	n.Close()

	assert.NotPanics(t, func() { n.OnEvent(reportEvent(reporting.UrgencyHigh)) })
	assert.Empty(t, s.messages())
}

func TestShoutrrrLoggerService(t *testing.T) {
	n, err := New(Config{URLs: []string{"logger://"}})
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Send(t.Context(), "wildwatch", "test notification"))
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(Config{URLs: []string{"nosuchservice://token"}})
	require.Error(t, err)

	_, err = New(Config{TitleTemplate: "{{.Broken"}, withSender(&fakeSender{}))
	require.Error(t, err)
}

func TestTemplateDataFallsBackToSpeciesLabel(t *testing.T) {
	r := reportEvent(reporting.UrgencyLow).Report
	r.SpeciesInfo = nil
	td := NewTemplateData(r, "x")
	assert.Equal(t, "Vulpes vulpes", td.CommonName)
	assert.Equal(t, "87", td.ConfidencePercent)
	assert.Equal(t, "2025-05-04 06:30:00", td.Time)
}

func TestRenderUsesConfiguredTemplates(t *testing.T) {
	n, err := New(Config{
		TitleTemplate:   "{{.CommonName}} ({{.Urgency}})",
		MessageTemplate: "{{.ConfidencePercent}}% at {{.Location}}",
	}, withSender(&fakeSender{}))
	require.NoError(t, err)
	defer n.Close()

	title, message, err := n.Render(reportEvent(reporting.UrgencyMedium).Report, "rpt-1")
	require.NoError(t, err)
	assert.Equal(t, "Red Fox (medium)", title)
	assert.Equal(t, "87% at Ridge trail", message)
}
