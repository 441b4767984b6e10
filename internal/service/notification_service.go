package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/events"
)

// NotificationService forwards domain events to the notification transport.
// Without a broker channel it degrades to structured logging only.
type NotificationService struct {
	dispatcher events.Dispatcher
	channel    *amqp.Channel
	logger     *zap.Logger
	cfg        config.QueueConfig
}

// NewNotificationService creates the service. Channel may be nil.
func NewNotificationService(dispatcher events.Dispatcher, channel *amqp.Channel, logger *zap.Logger, cfg config.QueueConfig) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, channel: channel, logger: logger, cfg: cfg}
}

// RegisterHandlers subscribes to the events worth notifying about.
func (s *NotificationService) RegisterHandlers() {
	for _, eventType := range []events.EventType{
		events.EventIssueCreated,
		events.EventIssueStatusChanged,
		events.EventMessageAppended,
		events.EventTechnicianAssigned,
		events.EventTechnicianRemoved,
	} {
		s.dispatcher.Subscribe(eventType, s.handleEvent)
	}
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	s.logger.Info("notification event",
		zap.String("type", string(event.Type)),
		zap.String("issue_id", event.IssueID),
	)
	if s.channel == nil {
		return nil
	}
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish notification", zap.Error(err))
	}
	return nil
}

func (s *NotificationService) publish(ctx context.Context, event events.Event) error {
	if _, err := s.channel.QueueDeclare(s.cfg.QueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.channel.PublishWithContext(pubCtx,
		"",
		s.cfg.QueueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		})
}
