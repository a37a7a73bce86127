// Package notification pushes sighting alerts to administrators through shoutrrr
// service URLs (telegram, discord, ntfy, smtp, ...). Alerts are queued, rate limited
// and delivered by a single worker so the session controller never blocks on them.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/observability/metrics"
	"github.com/tphakala/wildwatch-go/internal/reporting"
	"github.com/tphakala/wildwatch-go/internal/session"
)

// Defaults for Config.
const (
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerMinute = 30
	DefaultBurst             = 5
	DefaultQueueSize         = 32
)

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// Config configures the notifier.
type Config struct {
	Enabled bool
	// URLs are shoutrrr service URLs, e.g. telegram://token@telegram?chats=123.
	URLs    []string
	Timeout time.Duration
	// MinUrgency suppresses alerts below this urgency (low, medium, high).
	MinUrgency        string
	RequestsPerMinute int
	Burst             int
	QueueSize         int
	TitleTemplate     string
	MessageTemplate   string
}

// sender is the subset of the shoutrrr router the notifier uses.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

type alert struct {
	title   string
	message string
}

// Notifier delivers sighting alerts. It implements session.Listener.
type Notifier struct {
	cfg       Config
	sender    sender
	templates *templates
	limiter   *rate.Limiter
	metrics   *metrics.NotificationMetrics
	log       logger.Logger

	mu     sync.Mutex
	closed bool
	queue  chan alert
	done   chan struct{}
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithMetrics records delivery metrics.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

func withSender(s sender) Option {
	return func(n *Notifier) { n.sender = s }
}

// New validates the service URLs and starts the delivery worker. Call Close to stop it.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	tpl, err := parseTemplates(cfg.TitleTemplate, cfg.MessageTemplate)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	n := &Notifier{
		cfg:       cfg,
		templates: tpl,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.Burst),
		log:       GetLogger(),
		queue:     make(chan alert, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.sender == nil {
		if len(cfg.URLs) == 0 {
			return nil, errors.Newf("at least one notification URL is required").
				Component("notification").
				Category(errors.CategoryConfiguration).
				Build()
		}
		router, err := shoutrrr.CreateSender(slices.Clone(cfg.URLs)...)
		if err != nil {
			// the raw error may echo service tokens
			return nil, errors.Newf("invalid notification URL: %s", logger.RedactSensitiveData(err.Error())).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Build()
		}
		router.Timeout = cfg.Timeout
		router.SetLogger(log.New(io.Discard, "", 0))
		n.sender = router
	}

	go n.worker()
	return n, nil
}

// OnEvent queues an alert for every submitted sighting report at or above MinUrgency.
// It never blocks; alerts are dropped when the queue is full.
func (n *Notifier) OnEvent(e session.Event) {
	if e.Type != session.EventReportSubmitted || e.Report == nil {
		return
	}
	if !urgencyAtLeast(e.Report.Urgency, n.cfg.MinUrgency) {
		return
	}

	var reportID string
	if e.Receipt != nil {
		reportID = e.Receipt.ReportID
	}
	title, message, err := n.templates.render(NewTemplateData(e.Report, reportID))
	if err != nil {
		n.log.Warn("failed to render sighting alert", logger.Error(err))
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- alert{title: title, message: message}:
	default:
		n.metrics.IncrementRateLimited()
		n.log.Warn("notification queue full, alert dropped", logger.String("report_id", reportID))
	}
}

func (n *Notifier) worker() {
	defer close(n.done)
	for a := range n.queue {
		if !n.limiter.Allow() {
			n.metrics.IncrementRateLimited()
			n.log.Warn("notification rate limit exceeded, alert dropped", logger.String("title", a.title))
			continue
		}
		if err := n.deliver(a.title, a.message); err != nil {
			n.log.Error("failed to deliver sighting alert", logger.Error(err))
		}
	}
}

// Render formats a report with the configured title and message templates.
func (n *Notifier) Render(r *reporting.Report, reportID string) (title, message string, err error) {
	return n.templates.render(NewTemplateData(r, reportID))
}

// Send delivers a message immediately, bypassing the queue and rate limiter.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.deliver(title, message)
}

func (n *Notifier) deliver(title, message string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	start := time.Now()
	errs := slices.DeleteFunc(n.sender.Send(message, &params), func(e error) bool { return e == nil })
	elapsed := time.Since(start)

	var err error
	if len(errs) > 0 {
		err = errors.New(fmt.Errorf("notification delivery failed: %s", logger.RedactSensitiveData(errors.Join(errs...).Error()))).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("failed_services", len(errs)).
			Timing("notification_send", elapsed).
			Build()
	}
	n.metrics.RecordDelivery("shoutrrr", elapsed, err)
	if err == nil {
		n.log.Debug("sighting alert delivered", logger.String("title", title), logger.Duration("elapsed", elapsed))
	}
	return err
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func urgencyRank(u string) int {
	switch u {
	case reporting.UrgencyHigh:
		return 3
	case reporting.UrgencyMedium:
		return 2
	case reporting.UrgencyLow:
		return 1
	}
	return 0
}

func urgencyAtLeast(u, minimum string) bool {
	return urgencyRank(u) >= urgencyRank(minimum)
}
