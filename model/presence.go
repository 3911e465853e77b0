package model

import "time"

// Presence is the durable record of a user's connected/disconnected state and
// last-connected time. It is the durable shadow of the in-memory connection
// registry: consulted, never computed from, the live registry.
//
// Keyed by user identity; upserted on connect, updated (Connected=false) on
// disconnect. Never deleted.
type Presence struct {
	ID              int64     `json:"id"`                                    // Row ID
	UserID          int64     `json:"userID" db:"user_id"`                   // User identity (unique)
	Connected       bool      `json:"connected"`                             // Last known connection state
	LastConnectedAt time.Time `json:"lastConnectedAt" db:"last_connected_at"` // Time of last successful handshake
}

// TableName returns the database table name for Presence.
func (p Presence) TableName() string {
	return tablePrefix + "presence"
}

// NewPresence creates a presence record for a user connecting now.
func NewPresence(userID int64) Presence {
	return Presence{
		ID:              0,
		UserID:          userID,
		Connected:       true,
		LastConnectedAt: time.Now(),
	}
}

// MarkDisconnected records that the user's connection closed.
// LastConnectedAt keeps the time of the last successful handshake.
func (p *Presence) MarkDisconnected() {
	p.Connected = false
}
