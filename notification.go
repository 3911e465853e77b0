package libchat

import (
	"context"

	"github.com/coregx/libchat/model"
)

// NotificationService defines an optional interface for observing messaging
// events (delivery failures, presence transitions, subscription changes).
//
// Implementations might send emails, Slack messages, or log to monitoring
// systems. Failures are logged and never affect delivery.
type NotificationService interface {
	// NotifyDeliveryFailure is called when a push to a registered-but-dead
	// connection fails. The message stays undelivered for later replay.
	NotifyDeliveryFailure(ctx context.Context, msg model.Message, recipientID int64, err error) error

	// NotifyPresenceChanged is called after a user's durable presence
	// record transitions (connect or disconnect).
	NotifyPresenceChanged(ctx context.Context, presence model.Presence) error

	// NotifySubscriptionCreated is called when a new subscription is created.
	NotifySubscriptionCreated(ctx context.Context, subscription model.Subscription) error

	// NotifySubscriptionRemoved is called when a subscription row is
	// deleted (unsubscribe or admin-forced removal).
	NotifySubscriptionRemoved(ctx context.Context, userID int64, topic string) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyDeliveryFailure does nothing.
func (n *NoOpNotificationService) NotifyDeliveryFailure(_ context.Context, _ model.Message, _ int64, _ error) error {
	return nil
}

// NotifyPresenceChanged does nothing.
func (n *NoOpNotificationService) NotifyPresenceChanged(_ context.Context, _ model.Presence) error {
	return nil
}

// NotifySubscriptionCreated does nothing.
func (n *NoOpNotificationService) NotifySubscriptionCreated(_ context.Context, _ model.Subscription) error {
	return nil
}

// NotifySubscriptionRemoved does nothing.
func (n *NoOpNotificationService) NotifySubscriptionRemoved(_ context.Context, _ int64, _ string) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyDeliveryFailure logs the failed push.
func (n *LoggingNotificationService) NotifyDeliveryFailure(_ context.Context, msg model.Message, recipientID int64, err error) error {
	n.logger.Warnf("Delivery failed: message_id=%d, recipient=%d, error=%v",
		msg.ID, recipientID, err)
	return nil
}

// NotifyPresenceChanged logs the presence transition.
func (n *LoggingNotificationService) NotifyPresenceChanged(_ context.Context, presence model.Presence) error {
	n.logger.Infof("Presence changed: user_id=%d, connected=%t", presence.UserID, presence.Connected)
	return nil
}

// NotifySubscriptionCreated logs subscription creation.
func (n *LoggingNotificationService) NotifySubscriptionCreated(_ context.Context, subscription model.Subscription) error {
	n.logger.Infof("Subscription created: id=%d, user_id=%d, topic=%s",
		subscription.ID, subscription.UserID, subscription.Topic)
	return nil
}

// NotifySubscriptionRemoved logs subscription removal.
func (n *LoggingNotificationService) NotifySubscriptionRemoved(_ context.Context, userID int64, topic string) error {
	n.logger.Infof("Subscription removed: user_id=%d, topic=%s", userID, topic)
	return nil
}
