package mqtt

import (
	"context"
	"encoding/json"
	"path"
	"sync"

	"github.com/tphakala/wildwatch-go/internal/logger"
	"github.com/tphakala/wildwatch-go/internal/session"
)

const publishQueueSize = 64

type message struct {
	topic   string
	payload []byte
}

// Publisher forwards session events to MQTT. It implements session.Listener; events
// are queued and published by a single worker so listeners never block.
type Publisher struct {
	client Client
	prefix string
	log    logger.Logger

	mu     sync.Mutex
	closed bool
	queue  chan message
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPublisher starts the publish worker. Call Close to stop it.
func NewPublisher(c Client, topicPrefix string) *Publisher {
	if topicPrefix == "" {
		topicPrefix = DefaultConfig().TopicPrefix
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		client: c,
		prefix: topicPrefix,
		log:    GetLogger().Module("publisher"),
		queue:  make(chan message, publishQueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go p.worker()
	return p
}

// Topic returns the full topic for suffix.
func (p *Publisher) Topic(suffix string) string {
	return path.Join(p.prefix, suffix)
}

// OnEvent queues the event payload. Events are dropped when the queue is full.
func (p *Publisher) OnEvent(e session.Event) {
	suffix, dto, ok := payloadFor(e)
	if !ok {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		p.log.Warn("failed to encode MQTT payload", logger.String("event", string(e.Type)), logger.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- message{topic: p.Topic(suffix), payload: payload}:
	default:
		p.log.Warn("MQTT publish queue full, event dropped", logger.String("event", string(e.Type)))
	}
}

func (p *Publisher) worker() {
	defer close(p.done)
	for m := range p.queue {
		if err := p.client.Publish(p.ctx, m.topic, m.payload); err != nil {
			p.log.Warn("MQTT publish failed", logger.String("topic", m.topic), logger.Error(err))
			continue
		}
		p.log.Debug("MQTT event published", logger.String("topic", m.topic), logger.Int("bytes", len(m.payload)))
	}
}

// Close drains queued events and stops the worker. Pending publishes are cancelled
// when ctx is done first.
func (p *Publisher) Close(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		p.cancel()
		<-p.done
	}
	p.cancel()
}
