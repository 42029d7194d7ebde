package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

// Processor handles one message body end to end. Returning nil means the
// chain reached a terminal state (completed or marked failed) and the
// message can be acknowledged; returning an error means a transient fault
// interrupted the chain and the message must be redelivered.
type Processor interface {
	Process(ctx context.Context, body []byte) error
}

// Consumer pulls embedding messages with a bounded prefetch and hands each
// one to the processor on its own worker. Acknowledgement happens only after
// the processor returns, so a crash mid-chain redelivers cleanly.
type Consumer struct {
	conn      *Connection
	queue     string
	prefetch  int
	processor Processor
	logger    *zap.Logger
}

// NewConsumer connects and prepares a consumer; Run starts consumption.
func NewConsumer(ctx context.Context, cfg config.QueueConfig, processor Processor, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn := NewConnection(cfg, logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:      conn,
		queue:     cfg.Name,
		prefetch:  prefetch,
		processor: processor,
		logger:    logger,
	}, nil
}

const reconnectPollInterval = 250 * time.Millisecond

// Run consumes until the context is cancelled. A dropped broker connection
// does not end consumption: Run waits for the connection manager's redial,
// re-opens a channel, and resumes consuming from the same durable queue.
// At most prefetch messages are in flight at once; messages for different
// items may complete out of order.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Consumption interrupted, waiting for reconnection", zap.Error(err))
		if werr := c.awaitReconnect(ctx); werr != nil {
			return werr
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming from %q: %w", c.queue, err)
	}

	c.logger.Info("Waiting for messages",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetch))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				c.handle(ctx, d)
			}(delivery)
		}
	}
}

// awaitReconnect blocks until the connection manager has redialled, the
// connection is permanently gone, or the context ends.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	ticker := time.NewTicker(reconnectPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch c.conn.State() {
			case StateConnected:
				return nil
			case StateClosed, StateDisconnected:
				return fmt.Errorf("connection lost and not recovering")
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if err := c.processor.Process(ctx, d.Body); err != nil {
		c.logger.Warn("Processing interrupted, requeueing message",
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
		if nerr := d.Nack(false, true); nerr != nil {
			c.logger.Error("Failed to nack message", zap.Error(nerr))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", zap.Error(err))
	}
}

// Close shuts the consumer's connection down.
func (c *Consumer) Close() error {
	return c.conn.Close()
}
