package relica

import (
	"database/sql"

	"github.com/coregx/libchat"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Message      libchat.MessageRepository
	Subscription libchat.SubscriptionRepository
	Topic        libchat.TopicRepository
	Presence     libchat.PresenceRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "chat_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		Message:      NewMessageRepository(db, driverName),
		Subscription: NewSubscriptionRepository(db, driverName),
		Topic:        NewTopicRepository(db, driverName),
		Presence:     NewPresenceRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Message:      NewMessageRepositoryWithPrefix(db, driverName, prefix),
		Subscription: NewSubscriptionRepositoryWithPrefix(db, driverName, prefix),
		Topic:        NewTopicRepositoryWithPrefix(db, driverName, prefix),
		Presence:     NewPresenceRepositoryWithPrefix(db, driverName, prefix),
	}
}
