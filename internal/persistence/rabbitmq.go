package persistence

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/config"
)

// RabbitMQ wraps the broker connection and channel.
type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewRabbitMQ connects to the broker. Returns nil when no URI is configured
// so notifications degrade to log-only.
func NewRabbitMQ(cfg config.QueueConfig, logger *zap.Logger) (*RabbitMQ, error) {
	if cfg.URI == "" {
		logger.Warn("RABBITMQ_URI not provided; notifications are log-only")
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("queue", cfg.QueueName))
	return &RabbitMQ{Conn: conn, Channel: ch}, nil
}

// Close releases the channel and connection.
func (r *RabbitMQ) Close() {
	if r == nil {
		return
	}
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Conn != nil {
		_ = r.Conn.Close()
	}
}

// ChannelHandle returns the underlying channel, nil-safe.
func (r *RabbitMQ) ChannelHandle() *amqp.Channel {
	if r == nil {
		return nil
	}
	return r.Channel
}
