package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

const redisChannel = "playgrid:events"

// Publisher fans engine events out to in-process subscribers and, when a
// Redis client is supplied, mirrors them onto a pub/sub channel so external
// observers (dashboards, companion processes) can follow along. Delivery to a
// slow subscriber drops the event rather than blocking the engine.
type Publisher struct {
	client *redis.Client
	logger *zap.SugaredLogger

	mu     sync.Mutex
	subs   map[int]chan domain.EngineEvent
	nextID int
	closed bool
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher. client may be nil for purely in-process
// operation.
func NewPublisher(client *redis.Client, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
		subs:   make(map[int]chan domain.EngineEvent),
	}
}

// Publish delivers one event to all subscribers.
func (p *Publisher) Publish(ctx context.Context, event domain.EngineEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	for id, ch := range p.subs {
		select {
		case ch <- event:
		default:
			p.logger.Debugw("dropping event for slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
	p.mu.Unlock()

	if p.client != nil {
		p.mirrorToRedis(ctx, event)
	}
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function removes the subscription and closes the channel; calling it twice
// is safe.
func (p *Publisher) Subscribe(buffer int) (<-chan domain.EngineEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.EngineEvent, buffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Close drops all subscriptions.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Publisher) mirrorToRedis(ctx context.Context, event domain.EngineEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warnw("failed to marshal event for Redis mirror", "error", err)
		return
	}
	if err := p.client.Publish(ctx, redisChannel, data).Err(); err != nil {
		p.logger.Debugw("failed to mirror event to Redis", "error", err)
	}
}
