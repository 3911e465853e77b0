package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTopic_TableName(t *testing.T) {
	topic := Topic{}
	assert.Equal(t, "chat_topic", topic.TableName())
}

func TestNewTopic(t *testing.T) {
	topic := NewTopic("announcements", 7, "Library-wide announcements")

	assert.Equal(t, int64(0), topic.ID)
	assert.Equal(t, "announcements", topic.Name)
	assert.Equal(t, int64(7), topic.CreatorID)
	assert.Equal(t, "Library-wide announcements", topic.Description)
	assert.WithinDuration(t, time.Now(), topic.CreatedAt, time.Second)
}
