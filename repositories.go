package libchat

import (
	"context"

	"github.com/coregx/libchat/model"
)

// MessageRepository defines the persistence interface for chat messages.
// Messages are created once and afterwards mutated only to flip the delivered
// and read flags.
//
// Implementations must be safe for concurrent use. Each operation is a single
// short synchronous call; no multi-row transactions are required.
type MessageRepository interface {
	// Load retrieves a message by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Message, error)

	// Save creates a new message (if ID=0) or updates an existing one.
	// Returns the saved message with populated ID.
	Save(ctx context.Context, m model.Message) (model.Message, error)

	// FindConversation retrieves private messages exchanged between two users
	// in either direction, newest first, up to limit (0 = no limit).
	// Returns empty slice if none found.
	FindConversation(ctx context.Context, userA, userB int64, limit int) ([]model.Message, error)

	// FindRecentByTopic retrieves messages posted to a topic, newest first,
	// up to limit (0 = no limit). Returns empty slice if none found.
	FindRecentByTopic(ctx context.Context, topic string, limit int) ([]model.Message, error)

	// FindUndeliveredForReceiver retrieves undelivered private messages
	// addressed to a user, oldest first (replay order).
	FindUndeliveredForReceiver(ctx context.Context, receiverID int64) ([]model.Message, error)

	// FindUndeliveredForTopic retrieves undelivered messages for a topic,
	// oldest first (replay order).
	FindUndeliveredForTopic(ctx context.Context, topic string) ([]model.Message, error)
}

// SubscriptionRepository defines the persistence interface for (user, topic)
// memberships. The rows for a topic are the fan-out list for group messages.
type SubscriptionRepository interface {
	// Find retrieves the subscription for a (user, topic) pair.
	// Returns ErrNoData if the user is not subscribed.
	Find(ctx context.Context, userID int64, topic string) (model.Subscription, error)

	// FindByTopic retrieves all subscriptions for a topic.
	// Returns empty slice if none found.
	FindByTopic(ctx context.Context, topic string) ([]model.Subscription, error)

	// FindByUser retrieves all subscriptions held by a user.
	// Returns empty slice if none found.
	FindByUser(ctx context.Context, userID int64) ([]model.Subscription, error)

	// Save creates a new subscription (if ID=0) or updates an existing one.
	// Returns the saved subscription with populated ID.
	Save(ctx context.Context, s model.Subscription) (model.Subscription, error)

	// Delete removes the subscription row for a (user, topic) pair.
	// Deleting an absent row is not an error (idempotent).
	Delete(ctx context.Context, userID int64, topic string) error
}

// TopicRepository defines the persistence interface for the topic catalog.
type TopicRepository interface {
	// Load retrieves a topic by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Topic, error)

	// GetByName retrieves a topic by its unique name.
	// Returns ErrNoData if not found.
	GetByName(ctx context.Context, name string) (model.Topic, error)

	// Save creates a new topic (if ID=0) or updates an existing one.
	// Returns the saved topic with populated ID.
	Save(ctx context.Context, t model.Topic) (model.Topic, error)

	// List retrieves all topics. Returns empty slice if none exist.
	List(ctx context.Context) ([]model.Topic, error)
}

// PresenceRepository defines the persistence interface for durable presence
// records, keyed by user identity. Records are upserted on connect, updated on
// disconnect, never deleted.
type PresenceRepository interface {
	// Get retrieves the presence record for a user.
	// Returns ErrNoData if the user has never connected.
	Get(ctx context.Context, userID int64) (model.Presence, error)

	// Upsert creates or replaces the presence record for p.UserID.
	// Returns the saved record with populated ID.
	Upsert(ctx context.Context, p model.Presence) (model.Presence, error)
}

// UserDirectory is the collaborator interface to the external user subsystem.
// The messaging core consults it only for existence checks and enumeration;
// user management itself is out of scope.
type UserDirectory interface {
	// Exists reports whether a user identity is known.
	Exists(ctx context.Context, userID int64) (bool, error)

	// ListIDs retrieves all known user identities. Used by the facade to
	// build the admin dashboard view (one conversation per user).
	ListIDs(ctx context.Context) ([]int64, error)
}
