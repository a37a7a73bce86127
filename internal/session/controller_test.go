package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/wildwatch-go/internal/capture"
	"github.com/tphakala/wildwatch-go/internal/clock"
	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/httpclient"
	"github.com/tphakala/wildwatch-go/internal/inference"
	"github.com/tphakala/wildwatch-go/internal/reporting"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Date(2025, 5, 4, 6, 30, 0, 0, time.UTC)

// fakeSource is a capture source whose frame readiness is set by the test.
type fakeSource struct {
	mu       sync.Mutex
	startErr error
	ready    bool
	running  bool
	starts   int
	releases int
	// onStop runs before the source is released.
	onStop func()
}

func (s *fakeSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	s.starts++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	onStop := s.onStop
	s.mu.Unlock()
	if onStop != nil {
		onStop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.releases++
	}
	s.running = false
	return nil
}

func (s *fakeSource) Latest() (capture.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || !s.ready {
		return capture.Frame{}, false
	}
	return capture.Frame{JPEG: []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, Width: 1280, Height: 720, CapturedAt: testStart}, true
}

func (s *fakeSource) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *fakeSource) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// fakeDetector answers with the function installed by the test.
type fakeDetector struct {
	mu       sync.Mutex
	fn       func(ctx context.Context) ([]detection.Candidate, error)
	calls    int
	inFlight int
}

func (d *fakeDetector) Detect(ctx context.Context, _ inference.Media) ([]detection.Candidate, error) {
	d.mu.Lock()
	d.calls++
	d.inFlight++
	fn := d.fn
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (d *fakeDetector) set(fn func(ctx context.Context) ([]detection.Candidate, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
}

func (d *fakeDetector) returns(candidates ...detection.Candidate) {
	d.set(func(context.Context) ([]detection.Candidate, error) { return candidates, nil })
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// fakeReporter records submitted reports.
type fakeReporter struct {
	mu      sync.Mutex
	errs    []error
	reports []reporting.Report
}

func (r *fakeReporter) Submit(_ context.Context, report reporting.Report) (reporting.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return reporting.Receipt{}, err
		}
	}
	return reporting.Receipt{ReportID: fmt.Sprintf("rpt-%d", len(r.reports)), Message: "ok"}, nil
}

func (r *fakeReporter) submitted() []reporting.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reporting.Report(nil), r.reports...)
}

type harness struct {
	ctrl     *Controller
	source   *fakeSource
	detector *fakeDetector
	reporter *fakeReporter
	clock    *clock.Fake
}

func fox(conf float64) detection.Candidate {
	return detection.Candidate{Species: "Red Fox", Confidence: conf, Condition: "Injured", ConditionConfidence: 71}
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		source:   &fakeSource{ready: true},
		detector: &fakeDetector{},
		reporter: &fakeReporter{},
		clock:    clock.NewFake(testStart),
	}
	h.detector.returns(fox(0.82))

	if cfg.CurrentUserID == "" {
		cfg.CurrentUserID = "user-42"
	}
	if cfg.SampleInterval == 0 {
		// keep the background sampler quiet; tests drive ticks through Sample
		cfg.SampleInterval = time.Hour
	}
	base := []Option{WithSource(h.source), WithDetector(h.detector), WithReporter(h.reporter), WithClock(h.clock)}
	ctrl, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	h.ctrl = ctrl
	t.Cleanup(func() { _ = ctrl.Stop() })
	return h
}

// started returns a harness with a running session and a current detection.
func started(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, Config{})
	require.NoError(t, h.ctrl.Start(t.Context()))
	outcome, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeDetected, outcome)
	return h
}

// photoCaptured advances a started harness to PhotoCaptured.
func photoCaptured(t *testing.T) (*harness, CapturedPhoto) {
	t.Helper()
	h := started(t)
	require.NoError(t, h.ctrl.OpenReport())
	photo, err := h.ctrl.CapturePhoto()
	require.NoError(t, err)
	return h, photo
}

func TestNewRequiresUserID(t *testing.T) {
	_, err := New(Config{InferenceEndpoint: "http://x", ReportEndpoint: "http://y"},
		WithSource(&fakeSource{}))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStartDeviceUnavailable(t *testing.T) {
	h := newHarness(t, Config{})
	h.source.startErr = fmt.Errorf("%w: permission denied", capture.ErrDeviceUnavailable)

	err := h.ctrl.Start(t.Context())
	require.ErrorIs(t, err, ErrDeviceUnavailable)

	st := h.ctrl.Snapshot()
	assert.False(t, st.CameraActive)
	assert.Equal(t, GateIdle, st.Gate)

	outcome, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedInactive, outcome)
	assert.Zero(t, h.detector.callCount())
}

func TestStopIsIdempotent(t *testing.T) {
	h, _ := photoCaptured(t)

	require.NoError(t, h.ctrl.Stop())
	first := h.ctrl.Snapshot()
	require.NoError(t, h.ctrl.Stop())
	second := h.ctrl.Snapshot()

	assert.Equal(t, first, second)
	assert.False(t, second.CameraActive)
	assert.Equal(t, GateIdle, second.Gate)
	assert.Nil(t, second.Detection)
	assert.Nil(t, second.Photo)
	assert.Equal(t, 1, h.source.releaseCount())
	assert.Zero(t, h.clock.PendingTimers())

	_, ok := h.ctrl.Photo()
	assert.False(t, ok)
}

func TestStopDuringCooldownCancelsTimer(t *testing.T) {
	h, _ := photoCaptured(t)
	_, err := h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)
	require.Equal(t, 1, h.clock.PendingTimers())

	require.NoError(t, h.ctrl.Stop())
	assert.Zero(t, h.clock.PendingTimers())
	assert.Equal(t, GateIdle, h.ctrl.Snapshot().Gate)
}

func TestSubmitInIdleMakesNoNetworkCall(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("POST", "https://reports.example.com/api/reports",
		httpmock.NewStringResponder(200, `{"success":true,"report_id":"r1"}`))

	src := &fakeSource{ready: true}
	det := &fakeDetector{}
	ctrl, err := New(Config{
		InferenceEndpoint: "https://inference.example.com/detect",
		ReportEndpoint:    "https://reports.example.com/api/reports",
		CurrentUserID:     "user-42",
		SampleInterval:    time.Hour,
		HTTP:              &httpclient.Config{Transport: mock},
	}, WithSource(src), WithDetector(det), WithClock(clock.NewFake(testStart)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Stop() })

	_, err = ctrl.SubmitReport(t.Context(), reporting.Draft{Notes: "before start"})
	require.ErrorIs(t, err, ErrNoDetectionToReport)

	require.NoError(t, ctrl.Start(t.Context()))
	outcome, err := ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeNoDetection, outcome)

	_, err = ctrl.SubmitReport(t.Context(), reporting.Draft{Notes: "idle"})
	require.ErrorIs(t, err, ErrNoDetectionToReport)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	assert.Zero(t, mock.GetTotalCallCount())
	assert.Equal(t, GateIdle, ctrl.Snapshot().Gate)
}

func TestSubmitWithoutPhotoStepIsRejected(t *testing.T) {
	h := started(t)

	_, err := h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, h.ctrl.OpenReport())
	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, h.reporter.submitted())
	assert.Equal(t, GateAwaitingCapture, h.ctrl.Snapshot().Gate)
}

func TestCooldownSuspendsSampling(t *testing.T) {
	h, _ := photoCaptured(t)

	receipt, err := h.ctrl.SubmitReport(t.Context(), reporting.Draft{Location: "Ridge trail"})
	require.NoError(t, err)
	assert.Equal(t, "rpt-1", receipt.ReportID)

	st := h.ctrl.Snapshot()
	assert.Equal(t, GateCooldown, st.Gate)
	assert.True(t, st.CooldownActive)
	assert.Equal(t, int64(10000), st.CooldownRemainingMS)
	assert.Nil(t, st.Detection)
	assert.Nil(t, st.Photo)
	assert.Equal(t, "rpt-1", st.LastReport.ReportID)

	calls := h.detector.callCount()
	outcome, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedCooldown, outcome)

	h.clock.Advance(9999 * time.Millisecond)
	outcome, err = h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedCooldown, outcome)
	assert.Equal(t, calls, h.detector.callCount(), "no inference during cooldown")
	assert.Nil(t, h.ctrl.Snapshot().Detection)
	assert.Equal(t, int64(1), h.ctrl.Snapshot().CooldownRemainingMS)
	require.ErrorIs(t, h.ctrl.OpenReport(), ErrNoDetectionToReport)

	h.clock.Advance(time.Millisecond)
	st = h.ctrl.Snapshot()
	assert.Equal(t, GateIdle, st.Gate)
	assert.False(t, st.CooldownActive)

	outcome, err = h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetected, outcome)
	assert.Equal(t, calls+1, h.detector.callCount())
	assert.NotNil(t, h.ctrl.Snapshot().Detection)
}

func TestRetakeDiscardsPhoto(t *testing.T) {
	h, first := photoCaptured(t)

	st := h.ctrl.Snapshot()
	assert.Equal(t, GatePhotoCaptured, st.Gate)
	require.NotNil(t, st.Photo)
	assert.Equal(t, first.ID, st.Photo.ID)
	assert.Nil(t, st.Photo.JPEG, "snapshot carries photo metadata only")

	require.NoError(t, h.ctrl.Retake())
	st = h.ctrl.Snapshot()
	assert.Equal(t, GateAwaitingCapture, st.Gate)
	assert.Nil(t, st.Photo)
	_, ok := h.ctrl.Photo()
	assert.False(t, ok)

	second, err := h.ctrl.CapturePhoto()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, ok := h.ctrl.Photo()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)
	reports := h.reporter.submitted()
	require.Len(t, reports, 1)
	assert.Equal(t, second.ID+".jpg", reports[0].ImageFilename)
	assert.NotEmpty(t, reports[0].ImageData)
}

func TestFailedSubmissionReturnsToPhotoCaptured(t *testing.T) {
	h, photo := photoCaptured(t)
	h.reporter.errs = []error{
		errors.New(&reporting.SubmissionError{StatusCode: 503, Message: "database unavailable"}).
			Component("reporting").
			Category(errors.CategoryReporting).
			Build(),
	}
	draft := reporting.Draft{Location: "Pond", Notes: "limping", AnimalCount: 2}

	_, err := h.ctrl.SubmitReport(t.Context(), draft)
	require.ErrorIs(t, err, ErrReportSubmissionFailed)
	var subErr *reporting.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "database unavailable", subErr.Message)

	st := h.ctrl.Snapshot()
	assert.Equal(t, GatePhotoCaptured, st.Gate)
	require.NotNil(t, st.Photo)
	assert.Equal(t, photo.ID, st.Photo.ID)

	_, err = h.ctrl.SubmitReport(t.Context(), draft)
	require.NoError(t, err)
	assert.Equal(t, GateCooldown, h.ctrl.Snapshot().Gate)

	reports := h.reporter.submitted()
	require.Len(t, reports, 2)
	assert.Equal(t, reports[0].ImageFilename, reports[1].ImageFilename)
	assert.Equal(t, 2, reports[1].AnimalCount)
	assert.Equal(t, reporting.UrgencyHigh, reports[1].Urgency)
	assert.Equal(t, "user-42", reports[1].ReporterID)
	assert.Equal(t, reporting.SourceLive, reports[1].Source)
}

func TestUnclassifiedSubmitErrorIsWrapped(t *testing.T) {
	h, _ := photoCaptured(t)
	h.reporter.errs = []error{context.DeadlineExceeded}

	_, err := h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.ErrorIs(t, err, ErrReportSubmissionFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, GatePhotoCaptured, h.ctrl.Snapshot().Gate)
}

func TestCaptureNotReady(t *testing.T) {
	h := started(t)
	require.NoError(t, h.ctrl.OpenReport())
	h.source.setReady(false)

	_, err := h.ctrl.CapturePhoto()
	require.ErrorIs(t, err, ErrCaptureNotReady)
	assert.Equal(t, GateAwaitingCapture, h.ctrl.Snapshot().Gate)

	h.source.setReady(true)
	_, err = h.ctrl.CapturePhoto()
	require.NoError(t, err)
	assert.Equal(t, GatePhotoCaptured, h.ctrl.Snapshot().Gate)
}

func TestGateRejectsOutOfStateActions(t *testing.T) {
	h := newHarness(t, Config{})

	require.ErrorIs(t, h.ctrl.OpenReport(), ErrNoDetectionToReport)
	require.ErrorIs(t, h.ctrl.Retake(), ErrInvalidTransition)
	require.ErrorIs(t, h.ctrl.CancelReport(), ErrInvalidTransition)
	_, err := h.ctrl.CapturePhoto()
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, h.ctrl.Start(t.Context()))
	_, err = h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.OpenReport())
	require.ErrorIs(t, h.ctrl.OpenReport(), ErrInvalidTransition)
	require.ErrorIs(t, h.ctrl.Retake(), ErrInvalidTransition)

	require.NoError(t, h.ctrl.CancelReport())
	assert.Equal(t, GateIdle, h.ctrl.Snapshot().Gate)
}

func TestReportPinsDetectionWhileSamplingContinues(t *testing.T) {
	h := started(t)
	require.NoError(t, h.ctrl.OpenReport())

	h.detector.returns(detection.Candidate{Species: "Badger", Confidence: 0.9})
	outcome, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeDetected, outcome)

	st := h.ctrl.Snapshot()
	assert.Equal(t, "Badger", st.Detection.Species)
	assert.Equal(t, "Red Fox", st.ReportDetection.Species)

	_, err = h.ctrl.CapturePhoto()
	require.NoError(t, err)
	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)
	assert.Equal(t, "Red Fox", h.reporter.submitted()[0].Species)
}

func TestSampleOutcomes(t *testing.T) {
	h := started(t)
	require.NotNil(t, h.ctrl.Snapshot().Detection)

	t.Run("transport failure clears detection", func(t *testing.T) {
		h.detector.set(func(context.Context) ([]detection.Candidate, error) {
			return nil, fmt.Errorf("%w: connection refused", inference.ErrTransport)
		})
		outcome, err := h.ctrl.Sample(t.Context())
		assert.Equal(t, OutcomeFailed, outcome)
		require.ErrorIs(t, err, ErrInferenceTransport)
		assert.Nil(t, h.ctrl.Snapshot().Detection)
	})

	t.Run("below floor is no detection", func(t *testing.T) {
		h.detector.returns(fox(0.25), fox(0.29))
		outcome, err := h.ctrl.Sample(t.Context())
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoDetection, outcome)
		assert.Nil(t, h.ctrl.Snapshot().Detection)
	})

	t.Run("highest confidence wins", func(t *testing.T) {
		h.detector.returns(fox(0.25), detection.Candidate{Species: "Hedgehog", Confidence: 0.5}, fox(0.4))
		outcome, err := h.ctrl.Sample(t.Context())
		require.NoError(t, err)
		assert.Equal(t, OutcomeDetected, outcome)
		assert.Equal(t, "Hedgehog", h.ctrl.Snapshot().Detection.Species)
	})

	t.Run("empty response clears detection", func(t *testing.T) {
		h.detector.returns()
		outcome, err := h.ctrl.Sample(t.Context())
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoDetection, outcome)
		assert.Nil(t, h.ctrl.Snapshot().Detection)
	})

	t.Run("no frame yet", func(t *testing.T) {
		h.source.setReady(false)
		defer h.source.setReady(true)
		calls := h.detector.callCount()
		outcome, err := h.ctrl.Sample(t.Context())
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoFrame, outcome)
		assert.Equal(t, calls, h.detector.callCount())
	})
}

// blockingDetector makes the harness detector wait until the request context ends
// or release is closed, signalling entered when a request begins.
func blockingDetector(h *harness) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{}, 1)
	release = make(chan struct{})
	h.detector.set(func(ctx context.Context) ([]detection.Candidate, error) {
		entered <- struct{}{}
		select {
		case <-release:
			return []detection.Candidate{fox(0.7)}, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", inference.ErrTransport, ctx.Err())
		}
	})
	return entered, release
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	h := started(t)
	entered, release := blockingDetector(h)

	result := make(chan Outcome, 1)
	go func() {
		outcome, _ := h.ctrl.Sample(context.Background())
		result <- outcome
	}()
	<-entered

	outcome, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedBusy, outcome)

	close(release)
	assert.Equal(t, OutcomeDetected, <-result)
}

func TestStopCancelsInFlightInferenceBeforeRelease(t *testing.T) {
	h := started(t)
	entered, _ := blockingDetector(h)

	var inFlightAtRelease int
	h.source.onStop = func() { inFlightAtRelease = h.detector.active() }

	result := make(chan Outcome, 1)
	go func() {
		outcome, _ := h.ctrl.Sample(context.Background())
		result <- outcome
	}()
	<-entered

	require.NoError(t, h.ctrl.Stop())
	assert.Zero(t, inFlightAtRelease, "camera released while inference was still running")
	assert.Equal(t, OutcomeDiscarded, <-result)
	assert.Nil(t, h.ctrl.Snapshot().Detection)
}

func TestResultResolvingAfterCooldownStartIsDiscarded(t *testing.T) {
	h, _ := photoCaptured(t)
	entered, _ := blockingDetector(h)

	result := make(chan Outcome, 1)
	go func() {
		outcome, _ := h.ctrl.Sample(context.Background())
		result <- outcome
	}()
	<-entered

	_, err := h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeDiscarded, <-result)
	st := h.ctrl.Snapshot()
	assert.Equal(t, GateCooldown, st.Gate)
	assert.Nil(t, st.Detection)
}

func TestSamplerLoopTicksOnClock(t *testing.T) {
	h := newHarness(t, Config{SampleInterval: 2 * time.Second})
	require.NoError(t, h.ctrl.Start(t.Context()))

	h.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Detection != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.detector.callCount())

	require.NoError(t, h.ctrl.Stop())
}

func TestRestartAfterStop(t *testing.T) {
	h := started(t)
	first := h.ctrl.Snapshot().SessionID

	require.NoError(t, h.ctrl.Stop())
	require.NoError(t, h.ctrl.Start(t.Context()))
	st := h.ctrl.Snapshot()
	assert.True(t, st.CameraActive)
	assert.NotEqual(t, first, st.SessionID)
	assert.Nil(t, st.Detection)

	require.NoError(t, h.ctrl.Start(t.Context()), "start is a no-op while active")
	assert.Equal(t, 2, h.source.starts)
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func TestListenersReceiveLifecycleEvents(t *testing.T) {
	rec := &recordingListener{}
	h := newHarness(t, Config{}, WithListeners(rec))
	require.NoError(t, h.ctrl.Start(t.Context()))
	_, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.OpenReport())
	_, err = h.ctrl.CapturePhoto()
	require.NoError(t, err)
	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)
	h.clock.Advance(DefaultCooldown)
	require.NoError(t, h.ctrl.Stop())

	assert.Equal(t, []EventType{
		EventSessionStarted,
		EventDetection,
		EventReportSubmitted,
		EventCooldownEnded,
		EventSessionStopped,
	}, rec.types())
}

type fakePhotoStore struct {
	err  error
	keys []string
}

func (s *fakePhotoStore) Put(_ context.Context, id string, _ []byte, _ time.Time) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	key := "sightings/2025/05/04/" + id + ".jpg"
	s.keys = append(s.keys, key)
	return key, nil
}

func TestPhotoStoreReference(t *testing.T) {
	store := &fakePhotoStore{}
	h := newHarness(t, Config{}, WithPhotoStore(store))
	require.NoError(t, h.ctrl.Start(t.Context()))
	_, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.OpenReport())
	photo, err := h.ctrl.CapturePhoto()
	require.NoError(t, err)

	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)

	report := h.reporter.submitted()[0]
	assert.Equal(t, "sightings/2025/05/04/"+photo.ID+".jpg", report.ImageFilename)
	assert.Empty(t, report.ImageData)
}

func TestPhotoStoreFailureInlinesImage(t *testing.T) {
	store := &fakePhotoStore{err: errors.NewStd("bucket missing")}
	h := newHarness(t, Config{}, WithPhotoStore(store))
	require.NoError(t, h.ctrl.Start(t.Context()))
	_, err := h.ctrl.Sample(t.Context())
	require.NoError(t, err)
	require.NoError(t, h.ctrl.OpenReport())
	_, err = h.ctrl.CapturePhoto()
	require.NoError(t, err)

	_, err = h.ctrl.SubmitReport(t.Context(), reporting.Draft{})
	require.NoError(t, err)
	assert.Contains(t, h.reporter.submitted()[0].ImageData, "data:image/jpeg;base64,")
}
