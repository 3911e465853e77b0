package model

import (
	"database/sql"
	"time"
)

// Message represents a persisted chat message, either private (ReceiverID set)
// or group (Topic set). Exactly one of the two is set, never both, never
// neither.
//
// Messages are created once and afterwards mutated only to flip the Delivered
// and Read flags; they are never deleted by the normal flow. An undelivered
// message waits in storage until its target reconnects or subscribes.
type Message struct {
	ID         int64          `json:"id"`                        // Unique message ID
	SenderID   int64          `json:"senderID" db:"sender_id"`   // Originating user
	ReceiverID sql.NullInt64  `json:"receiverID" db:"receiver_id"` // Private recipient (mutually exclusive with Topic)
	Topic      sql.NullString `json:"topic"`                     // Group topic name (mutually exclusive with ReceiverID)
	Content    string         `json:"content"`                   // Non-empty message text
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"` // Send timestamp
	Delivered  bool           `json:"delivered"`                 // True once pushed to at least one live recipient
	Read       bool           `json:"read" db:"is_read"`         // True once marked read by a recipient
}

// TableName returns the database table name for Message.
func (m Message) TableName() string {
	return tablePrefix + "message"
}

// NewPrivateMessage creates a new undelivered private message.
//
// Parameters:
//   - senderID: The originating user
//   - receiverID: The private recipient
//   - content: Message text (must be non-empty)
func NewPrivateMessage(senderID, receiverID int64, content string) Message {
	return Message{
		ID:         0,
		SenderID:   senderID,
		ReceiverID: sql.NullInt64{Int64: receiverID, Valid: true},
		Content:    content,
		CreatedAt:  time.Now(),
		Delivered:  false,
		Read:       false,
	}
}

// NewTopicMessage creates a new undelivered group message for a topic.
//
// Parameters:
//   - senderID: The originating user (must be subscribed to the topic)
//   - topic: Topic name (must pre-exist in the topic catalog)
//   - content: Message text (must be non-empty)
func NewTopicMessage(senderID int64, topic, content string) Message {
	return Message{
		ID:        0,
		SenderID:  senderID,
		Topic:     sql.NullString{String: topic, Valid: true},
		Content:   content,
		CreatedAt: time.Now(),
		Delivered: false,
		Read:      false,
	}
}

// IsPrivate reports whether the message is addressed to a single user.
func (m Message) IsPrivate() bool {
	return m.ReceiverID.Valid
}

// IsGroup reports whether the message is addressed to a topic.
func (m Message) IsGroup() bool {
	return m.Topic.Valid
}

// MarkDelivered flips the delivered flag. Idempotent.
func (m *Message) MarkDelivered() {
	m.Delivered = true
}

// MarkRead flips the read flag. Idempotent.
func (m *Message) MarkRead() {
	m.Read = true
}
