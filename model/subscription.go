package model

import "time"

// Subscription represents a user's membership in a topic.
// The set of subscriptions for a topic is the fan-out list for group messages.
//
// A subscription is unique per (user, topic) pair. It is created on subscribe
// and hard-deleted on unsubscribe or admin-forced removal; there is no
// soft-delete state.
type Subscription struct {
	ID        int64     `json:"id"`                        // Unique subscription ID
	UserID    int64     `json:"userID" db:"user_id"`       // Subscribed user
	Topic     string    `json:"topic"`                     // Topic name
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Subscription creation time
}

// TableName returns the database table name for Subscription.
func (s Subscription) TableName() string {
	return tablePrefix + "subscription"
}

// NewSubscription creates a new subscription for a (user, topic) pair.
func NewSubscription(userID int64, topic string) Subscription {
	return Subscription{
		ID:        0,
		UserID:    userID,
		Topic:     topic,
		CreatedAt: time.Now(),
	}
}
