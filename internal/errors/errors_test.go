package errors

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReporter struct {
	calls atomic.Int32
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.calls.Add(1)
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestSentinelMatchingThroughBuilder(t *testing.T) {
	sentinel := NewStd("camera not ready")
	other := NewStd("other")

	ee := New(sentinel).
		Component("session").
		Category(CategoryState).
		Context("state", "idle").
		Build()

	assert.True(t, Is(ee, sentinel))
	assert.False(t, Is(ee, other))
	assert.True(t, IsCategory(ee, CategoryState))
	assert.Equal(t, "idle", ee.GetContext()["state"])

	wrapped := fmt.Errorf("outer: %w", ee)
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsCategory(wrapped, CategoryState))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("dial failed")).Category(CategoryNetwork).Build()
	outer := Newf("inference request: %w", inner).Component("inference").Build()

	assert.Equal(t, CategoryNetwork, outer.Category)
}

func TestPriorityNormalisation(t *testing.T) {
	assert.Equal(t, PriorityHigh, New(NewStd("x")).Priority(PriorityHigh).Build().Priority)
	assert.Equal(t, PriorityMedium, New(NewStd("x")).Priority("urgent").Build().Priority)
	assert.Empty(t, New(NewStd("x")).Priority("").Build().Priority)
}

func TestNetworkAndTimingContext(t *testing.T) {
	ee := New(NewStd("timeout")).
		NetworkContext("https://api.example.com/predict", 10*time.Second).
		Timing("detect", 1500*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.InDelta(t, 10.0, ctx["timeout_seconds"], 0.001)
	assert.Equal(t, "detect", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
}

func TestTelemetryReporterInvokedOnlyWhenInstalled(t *testing.T) {
	r := &countingReporter{}
	SetTelemetryReporter(r)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("boom")).Category(CategoryInference).Build()
	require.Equal(t, int32(1), r.calls.Load())
	assert.True(t, ee.IsReported())

	SetTelemetryReporter(nil)
	New(NewStd("boom")).Build()
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestBasicURLScrub(t *testing.T) {
	got := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://api.example.com?[REDACTED]", got)

	got = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, got, "[API_KEY_REDACTED]")
	assert.NotContains(t, got, "secret123")

	got = basicURLScrub("dial tcp rtsp://admin:pw@10.0.0.2/stream failed")
	assert.NotContains(t, got, "admin:pw")
}

func TestInitSentryEmptyDSNDisables(t *testing.T) {
	require.NoError(t, InitSentry("", "test"))
	assert.False(t, hasActiveReporting.Load())
}

func TestTelemetryRateLimitedPerComponentAndCategory(t *testing.T) {
	now := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	orig := limiter
	limiter = newTelemetryLimiter(RateLimitWindow, RateLimitEvents, func() time.Time { return now })
	t.Cleanup(func() { limiter = orig })

	r := &countingReporter{}
	SetTelemetryReporter(r)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	dropped := DroppedTelemetryEvents()
	// 30 failed ticks of a backend that is down, two seconds apart
	for range 30 {
		New(NewStd("status 503")).Component("inference").Category(CategoryInference).Build()
		now = now.Add(2 * time.Second)
	}
	assert.Equal(t, int32(RateLimitEvents), r.calls.Load())
	assert.Equal(t, dropped+30-RateLimitEvents, DroppedTelemetryEvents())

	// other component/category pairs keep their own budget
	New(NewStd("broker down")).Component("mqtt").Category(CategoryMQTTConnection).Build()
	assert.Equal(t, int32(RateLimitEvents+1), r.calls.Load())

	now = now.Add(RateLimitWindow)
	New(NewStd("status 503")).Component("inference").Category(CategoryInference).Build()
	assert.Equal(t, int32(RateLimitEvents+2), r.calls.Load(), "budget refills after the window")
}
