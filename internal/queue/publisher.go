package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// publishChannel is the slice of *amqp.Channel the publisher drives, split
// out so the declare/publish/retry path is testable without a broker.
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher enqueues embedding messages with persistent delivery. Publishing
// is fire-and-forget from the archive write's perspective: the write has
// already committed, so a failed publish is counted and surfaced as an
// error, never retried beyond one reconnect. A reconciliation sweep can
// re-publish items left in pending.
type Publisher struct {
	conn    *Connection
	queue   string
	logger  *zap.Logger
	metrics *metrics.Metrics

	open      func() (publishChannel, error)
	reconnect func(context.Context) error

	mu      sync.Mutex
	channel publishChannel
}

// NewPublisher connects, declares the durable queue, and returns a ready
// publisher.
func NewPublisher(ctx context.Context, cfg config.QueueConfig, m *metrics.Metrics, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn := NewConnection(cfg, logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	p := newPublisher(cfg.Name,
		func() (publishChannel, error) { return conn.Channel() },
		func(ctx context.Context) error {
			if conn.IsConnected() {
				return nil
			}
			return conn.Connect(ctx)
		},
		m, logger)
	p.conn = conn

	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(queue string, open func() (publishChannel, error), reconnect func(context.Context) error, m *metrics.Metrics, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		queue:     queue,
		logger:    logger,
		metrics:   m,
		open:      open,
		reconnect: reconnect,
	}
}

func (p *Publisher) openChannel() error {
	ch, err := p.open()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue %q: %w", p.queue, err)
	}

	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()
	return nil
}

// Publish serializes the message and enqueues it with persistent delivery.
// On a dead channel it reconnects once and retries once; a second failure
// is returned to the caller and counted.
func (p *Publisher) Publish(ctx context.Context, msg model.EmbeddingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode embedding message: %w", err)
	}

	if err := p.publishOnce(ctx, body); err != nil {
		p.logger.Warn("Publish failed, reconnecting once",
			zap.String("item_id", msg.ItemID),
			zap.Error(err))

		if rerr := p.reopen(ctx); rerr != nil {
			p.metrics.PublishFailures.Inc()
			return fmt.Errorf("failed to publish item %s: %w", msg.ItemID, rerr)
		}
		if rerr := p.publishOnce(ctx, body); rerr != nil {
			p.metrics.PublishFailures.Inc()
			return fmt.Errorf("failed to publish item %s: %w", msg.ItemID, rerr)
		}
	}

	p.metrics.MessagesPublished.Inc()
	p.logger.Debug("Published embedding message",
		zap.String("item_id", msg.ItemID),
		zap.String("field", msg.Field))
	return nil
}

func (p *Publisher) publishOnce(ctx context.Context, body []byte) error {
	p.mu.Lock()
	ch := p.channel
	p.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("publish channel is not open")
	}
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
}

func (p *Publisher) reopen(ctx context.Context) error {
	if err := p.reconnect(ctx); err != nil {
		return err
	}
	return p.openChannel()
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
