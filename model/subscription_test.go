package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_TableName(t *testing.T) {
	sub := Subscription{}
	assert.Equal(t, "chat_subscription", sub.TableName())
}

func TestNewSubscription(t *testing.T) {
	sub := NewSubscription(100, "announcements")

	assert.Equal(t, int64(0), sub.ID)
	assert.Equal(t, int64(100), sub.UserID)
	assert.Equal(t, "announcements", sub.Topic)
	assert.WithinDuration(t, time.Now(), sub.CreatedAt, time.Second)
}
