package libchat

import (
	"fmt"
	"time"
)

// Option is a function that configures a DeliveryEngine.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	engine, err := libchat.NewDeliveryEngine(
//	    libchat.WithRepositories(msgRepo, subRepo, topicRepo, presenceRepo),
//	    libchat.WithRegistry(registry),
//	    libchat.WithLogger(logger),
//	    libchat.WithDedupWindow(30*time.Second), // optional
//	)
type Option func(*DeliveryEngine) error

// WithRepositories sets the required repository dependencies for the delivery
// engine. All four repositories are required and must not be nil.
//
// This is a required option for NewDeliveryEngine.
//
// Parameters:
//   - messageRepo: Message persistence
//   - subscriptionRepo: Topic membership persistence
//   - topicRepo: Topic catalog persistence
//   - presenceRepo: Durable presence persistence
func WithRepositories(
	messageRepo MessageRepository,
	subscriptionRepo SubscriptionRepository,
	topicRepo TopicRepository,
	presenceRepo PresenceRepository,
) Option {
	return func(e *DeliveryEngine) error {
		if messageRepo == nil {
			return fmt.Errorf("messageRepo cannot be nil")
		}
		if subscriptionRepo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}
		if topicRepo == nil {
			return fmt.Errorf("topicRepo cannot be nil")
		}
		if presenceRepo == nil {
			return fmt.Errorf("presenceRepo cannot be nil")
		}

		e.messageRepo = messageRepo
		e.subscriptionRepo = subscriptionRepo
		e.topicRepo = topicRepo
		e.presenceRepo = presenceRepo
		return nil
	}
}

// WithRegistry sets the connection registry shared across connection
// goroutines. Required and must not be nil; the registry is injected rather
// than global so lifetime and test isolation stay explicit.
func WithRegistry(registry *ConnectionRegistry) Option {
	return func(e *DeliveryEngine) error {
		if registry == nil {
			return fmt.Errorf("registry cannot be nil")
		}
		e.registry = registry
		return nil
	}
}

// WithLogger sets the logger instance for the delivery engine.
// Logger is required and must not be nil.
//
// Use NoopLogger for silent operation or implement Logger interface
// to integrate with your logging system (zap, logrus, etc.).
func WithLogger(logger Logger) Option {
	return func(e *DeliveryEngine) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithUserDirectory sets an optional collaborator for user existence checks.
// When present, private sends to unknown receivers are rejected with NOT_FOUND
// instead of persisting a message nobody can ever receive.
func WithUserDirectory(directory UserDirectory) Option {
	return func(e *DeliveryEngine) error {
		if directory == nil {
			return fmt.Errorf("user directory cannot be nil")
		}
		e.userDirectory = directory
		return nil
	}
}

// WithDedupWindow bounds the content-based duplicate suppression to messages
// newer than the given window. Zero (the default) keeps the unbounded scan of
// the original system: any prior message from the same sender with identical
// content coalesces, regardless of age.
//
// This is an optional configuration.
func WithDedupWindow(window time.Duration) Option {
	return func(e *DeliveryEngine) error {
		if window < 0 {
			return fmt.Errorf("dedup window must be >= 0, got %v", window)
		}
		e.dedupWindow = window
		return nil
	}
}

// WithDedupScanLimit sets how many recent messages the dedup heuristic
// inspects per send. This is an optional configuration - default is 50.
//
// Must be > 0. Larger limits catch older duplicates at the cost of a wider
// query per send.
func WithDedupScanLimit(limit int) Option {
	return func(e *DeliveryEngine) error {
		if limit <= 0 {
			return fmt.Errorf("dedup scan limit must be > 0, got %d", limit)
		}
		e.dedupScanLimit = limit
		return nil
	}
}

// WithNotifications sets an optional notification service for the delivery
// engine. This is an optional configuration - if not provided,
// NoOpNotificationService will be used (no notifications).
//
// The notification service receives callbacks for delivery failures, presence
// transitions, and subscription changes. Use this to integrate with alerting
// systems (email, Slack, PagerDuty, etc.).
func WithNotifications(service NotificationService) Option {
	return func(e *DeliveryEngine) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		e.notificationService = service
		return nil
	}
}
