package model

import "time"

// Topic represents a named group-messaging channel with an explicit subscriber
// list. Messages and subscriptions reference a topic by name and require it to
// pre-exist; topics are created by an administrative action.
type Topic struct {
	ID          int64     `json:"id"`                          // Unique topic ID
	Name        string    `json:"name"`                        // Unique topic name (e.g., "announcements")
	CreatorID   int64     `json:"creatorID" db:"creator_id"`   // User who created the topic
	Description string    `json:"description"`                 // Topic purpose and details
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`   // Topic creation time
}

// TableName returns the database table name for Topic.
func (t Topic) TableName() string {
	return tablePrefix + "topic"
}

// NewTopic creates a new topic.
//
// Parameters:
//   - name: Unique topic name
//   - creatorID: The administrator creating the topic
//   - description: Purpose and usage details for this topic
func NewTopic(name string, creatorID int64, description string) Topic {
	return Topic{
		ID:          0,
		Name:        name,
		CreatorID:   creatorID,
		Description: description,
		CreatedAt:   time.Now(),
	}
}
