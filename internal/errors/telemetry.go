package errors

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"
)

// Telemetry events allowed per component and category within RateLimitWindow.
// A backend that stays down fails every sampling tick; only the first few are reported.
const (
	RateLimitWindow = 10 * time.Minute
	RateLimitEvents = 5
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu sync.RWMutex
	reporter   TelemetryReporter
	limiter    = newTelemetryLimiter(RateLimitWindow, RateLimitEvents, time.Now)

	eventsDropped atomic.Uint64
)

// SetTelemetryReporter installs the process wide reporter and resets the rate limits.
// Passing nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	limiter.reset()
	hasActiveReporting.Store(r != nil && r.IsEnabled())
}

// DroppedTelemetryEvents returns how many errors were not reported because of rate limiting.
func DroppedTelemetryEvents() uint64 {
	return eventsDropped.Load()
}

func reportToTelemetry(ee *EnhancedError) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r == nil || !r.IsEnabled() {
		return
	}
	if !limiter.Allow(ee.Component + "/" + string(ee.Category)) {
		eventsDropped.Add(1)
		return
	}
	r.ReportError(ee)
}

// telemetryLimiter keeps one token bucket per key. Keys are component/category pairs,
// both drawn from fixed sets, so the map stays small.
type telemetryLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	now      func() time.Time
	limiters map[string]*rate.Limiter
}

func newTelemetryLimiter(window time.Duration, events int, now func() time.Time) *telemetryLimiter {
	return &telemetryLimiter{
		every:    rate.Every(window / time.Duration(events)),
		burst:    events,
		now:      now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether an event for key may be sent now.
func (l *telemetryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = lim
	}
	return lim.AllowN(l.now(), 1)
}

func (l *telemetryLimiter) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.limiters)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// InitSentry initialises the Sentry SDK and installs a SentryReporter.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: false,
		SendDefaultPII:   false,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushTelemetry waits for buffered telemetry events up to timeout.
func FlushTelemetry(timeout time.Duration) {
	if hasActiveReporting.Load() {
		sentry.Flush(timeout)
	}
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy scrubbing
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	// Expected user-flow errors are not telemetry events.
	if ee.Category == CategoryValidation || ee.Category == CategoryState {
		return
	}

	message := basicURLScrub(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = basicURLScrub(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		level := levelFor(ee)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s %s", ee.Component, ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func levelFor(ee *EnhancedError) sentry.Level {
	switch ee.Priority {
	case PriorityCritical:
		return sentry.LevelFatal
	case PriorityHigh:
		return sentry.LevelError
	case PriorityLow:
		return sentry.LevelInfo
	}
	switch ee.Category {
	case CategoryNetwork, CategoryTimeout, CategoryInference:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^\s?]+)\?\S*`)
	secretPattern   = regexp.MustCompile(`(?i)\b(api_key|apikey|token|auth|password|secret)=\S+`)
	userInfoPattern = regexp.MustCompile(`([a-z][a-z0-9+.-]*://)[^\s/@]+@`)
)

// basicURLScrub removes query strings, credentials and key=value secrets from a message.
func basicURLScrub(message string) string {
	message = urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	message = userInfoPattern.ReplaceAllString(message, "$1[REDACTED]@")
	return secretPattern.ReplaceAllString(message, "[API_KEY_REDACTED]")
}
