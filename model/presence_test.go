package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresence_TableName(t *testing.T) {
	p := Presence{}
	assert.Equal(t, "chat_presence", p.TableName())
}

func TestNewPresence(t *testing.T) {
	p := NewPresence(42)

	assert.Equal(t, int64(0), p.ID)
	assert.Equal(t, int64(42), p.UserID)
	assert.True(t, p.Connected)
	assert.WithinDuration(t, time.Now(), p.LastConnectedAt, time.Second)
}

func TestPresence_MarkDisconnected(t *testing.T) {
	p := NewPresence(42)
	connectedAt := p.LastConnectedAt

	p.MarkDisconnected()

	assert.False(t, p.Connected)
	// LastConnectedAt keeps the handshake time
	assert.Equal(t, connectedAt, p.LastConnectedAt)
}
