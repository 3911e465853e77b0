package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_TableName(t *testing.T) {
	msg := Message{}
	assert.Equal(t, "chat_message", msg.TableName())
}

func TestNewPrivateMessage(t *testing.T) {
	msg := NewPrivateMessage(1, 2, "hi")

	assert.Equal(t, int64(0), msg.ID)
	assert.Equal(t, int64(1), msg.SenderID)
	assert.True(t, msg.ReceiverID.Valid)
	assert.Equal(t, int64(2), msg.ReceiverID.Int64)
	assert.False(t, msg.Topic.Valid)
	assert.Equal(t, "hi", msg.Content)
	assert.WithinDuration(t, time.Now(), msg.CreatedAt, time.Second)
	assert.False(t, msg.Delivered)
	assert.False(t, msg.Read)
}

func TestNewTopicMessage(t *testing.T) {
	msg := NewTopicMessage(1, "announcements", "new arrivals")

	assert.Equal(t, int64(1), msg.SenderID)
	assert.False(t, msg.ReceiverID.Valid)
	assert.True(t, msg.Topic.Valid)
	assert.Equal(t, "announcements", msg.Topic.String)
	assert.Equal(t, "new arrivals", msg.Content)
	assert.False(t, msg.Delivered)
	assert.False(t, msg.Read)
}

func TestMessage_IsPrivateIsGroup(t *testing.T) {
	private := NewPrivateMessage(1, 2, "hi")
	assert.True(t, private.IsPrivate())
	assert.False(t, private.IsGroup())

	group := NewTopicMessage(1, "dev", "standup in 5")
	assert.False(t, group.IsPrivate())
	assert.True(t, group.IsGroup())
}

func TestMessage_MarkDelivered(t *testing.T) {
	msg := NewPrivateMessage(1, 2, "hi")
	assert.False(t, msg.Delivered)

	msg.MarkDelivered()
	assert.True(t, msg.Delivered)

	// Idempotent
	msg.MarkDelivered()
	assert.True(t, msg.Delivered)
}

func TestMessage_MarkRead(t *testing.T) {
	msg := NewTopicMessage(1, "dev", "standup in 5")
	assert.False(t, msg.Read)

	msg.MarkRead()
	assert.True(t, msg.Read)
}
