package models

import (
	"encoding/json"
	"time"
)

// Message types exchanged with ws-broadcaster
const (
	MessageTypeOddsUpdate  = "odds_update"
	MessageTypeGameUpdate  = "game_update"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client.
// Payload is kept raw so it can be validated before decoding.
type ServerMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SubscriptionFilter represents client subscription preferences
type SubscriptionFilter struct {
	Sports  []string `json:"sports,omitempty"`
	Events  []string `json:"events,omitempty"`
	Markets []string `json:"markets,omitempty"`
	Books   []string `json:"books,omitempty"`
}

// ErrorMessage is the payload of an error envelope
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
