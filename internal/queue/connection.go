// Package queue carries archive items to the embedding consumer over a
// durable RabbitMQ queue with at-least-once delivery.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

// ConnectionState represents the state of the broker connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// Connection manages an AMQP connection with automatic reconnection and
// exponential backoff.
type Connection struct {
	cfg      config.QueueConfig
	logger   *zap.Logger
	conn     *amqp.Connection
	mu       sync.RWMutex
	state    atomic.Int32
	closeCh  chan struct{}
	notifyCh chan *amqp.Error
}

// NewConnection creates a connection manager; Connect must be called before
// channels can be opened.
func NewConnection(cfg config.QueueConfig, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connection{
		cfg:     cfg,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

// Connect establishes the connection and starts the reconnection monitor.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnectionState(c.state.Load()) == StateConnected {
		return nil
	}
	c.state.Store(int32(StateConnecting))

	conn, err := c.dial(ctx)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.conn = conn
	c.state.Store(int32(StateConnected))

	c.notifyCh = make(chan *amqp.Error, 1)
	c.conn.NotifyClose(c.notifyCh)
	go c.handleReconnect()

	c.logger.Info("Connected to RabbitMQ")
	return nil
}

func (c *Connection) dial(ctx context.Context) (*amqp.Connection, error) {
	connCh := make(chan *amqp.Connection, 1)
	errCh := make(chan error, 1)

	go func() {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case conn := <-connCh:
		return conn, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.cfg.ConnectionTimeout):
		return nil, fmt.Errorf("connection timeout after %v", c.cfg.ConnectionTimeout)
	}
}

func (c *Connection) handleReconnect() {
	for {
		select {
		case <-c.closeCh:
			return
		case err := <-c.notifyCh:
			if err == nil {
				// Normal close
				return
			}
			c.logger.Warn("RabbitMQ connection lost", zap.Error(err))
			c.state.Store(int32(StateReconnecting))

			if rerr := c.reconnect(); rerr != nil {
				c.logger.Error("Failed to reconnect to RabbitMQ", zap.Error(rerr))
				c.state.Store(int32(StateDisconnected))
				return
			}
		}
	}
}

func (c *Connection) reconnect() error {
	delay := c.cfg.ReconnectDelay
	attempts := 0

	for {
		select {
		case <-c.closeCh:
			return fmt.Errorf("connection closed during reconnection")
		default:
		}

		attempts++
		c.logger.Info("Attempting to reconnect to RabbitMQ",
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay))
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectionTimeout)
		conn, err := c.dial(ctx)
		cancel()

		if err != nil {
			c.logger.Warn("Reconnection attempt failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
			delay = time.Duration(float64(delay) * c.cfg.ReconnectBackoff)
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.notifyCh = make(chan *amqp.Error, 1)
		c.conn.NotifyClose(c.notifyCh)
		c.state.Store(int32(StateConnected))
		c.mu.Unlock()

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempts", attempts))
		return nil
	}
}

// Channel opens a new channel on the current connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil, fmt.Errorf("connection is not available")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return ch, nil
}

// IsConnected returns true while the connection is usable.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Close shuts the connection down permanently.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnectionState(c.state.Load()) == StateClosed {
		return nil
	}
	c.state.Store(int32(StateClosed))
	close(c.closeCh)

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	c.logger.Info("RabbitMQ connection closed")
	return nil
}
