package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Alu2004/swift-bus-bookings/internal/kafka"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
)

// NotificationConsumer listens to booking events and sends cancellation
// emails asynchronously. Confirmation emails are sent inline by the booking
// workflow so their outcome can be surfaced to the passenger; cancellations
// have no such requirement and go through here.
type NotificationConsumer struct {
	consumer *kafka.Consumer
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewNotificationConsumer creates a NotificationConsumer.
func NewNotificationConsumer(
	brokers []string,
	groupID string,
	notifier notify.Notifier,
	logger *zap.Logger,
) *NotificationConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicBookingEvents, logger)
	return &NotificationConsumer{
		consumer: consumer,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins consuming booking events. This blocks until the context is
// cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *NotificationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from booking topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case BookingCancelled:
		return c.handleBookingCancelled(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled booking event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *NotificationConsumer) handleBookingCancelled(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt BookingCancelledEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse BookingCancelledEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	err := c.notifier.SendBookingCancellation(ctx, notify.BookingCancellation{
		PassengerEmail: evt.PassengerEmail,
		PassengerName:  evt.PassengerName,
		BookingCode:    evt.BookingCode,
		BusNumber:      evt.BusNumber,
		SeatNumbers:    evt.SeatNumbers,
		CancelledAt:    evt.OccurredAt,
	})
	if err != nil {
		// Notification failures never block event processing; the booking
		// is already cancelled and the seats released.
		c.logger.Error("failed to send cancellation email",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Error(err),
		)
	}
	return nil
}
