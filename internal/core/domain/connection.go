package domain

import (
	"encoding/json"
	"time"
)

// Connection is the external document store account link. The token is
// opaque and only forwarded to the backend. Mock marks a locally fabricated
// test credential.
type Connection struct {
	Connected   bool            `json:"connected"`
	Token       json.RawMessage `json:"-"`
	ConnectedAt time.Time       `json:"connected_at,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Mock        bool            `json:"mock,omitempty"`
}

func (c Connection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// StoredToken is the persisted form of a delivered credential.
type StoredToken struct {
	Token     json.RawMessage `json:"token"`
	SavedAt   time.Time       `json:"saved_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Usable reports whether the stored credential is present and unexpired.
func (t StoredToken) Usable(now time.Time) bool {
	return len(t.Token) > 0 && (t.ExpiresAt == nil || now.Before(*t.ExpiresAt))
}

type ConnectOutcome string

const (
	ConnectConnected ConnectOutcome = "connected"
	ConnectCancelled ConnectOutcome = "cancelled"
	ConnectFailed    ConnectOutcome = "failed"
)
