package feed

import (
	"time"
)

// State is the connection lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateReconnecting
	StateStopped // Terminal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Publisher receives JSON-encoded frames for an account's subscribers.
type Publisher interface {
	Publish(account string, frame []byte) int
}

// ReleaseFunc asks the feed's owner whether the feed should terminate.
// It returns true when no subscriber interest remains and the owner has
// dropped this feed's handle; the feed must then stop and never dial
// again. Called at every reconnect decision point.
type ReleaseFunc func() bool

// Config holds upstream connection settings.
type Config struct {
	URL              string        // Streaming endpoint (instrument topic in query)
	RetryDelay       time.Duration // Fixed delay between reconnect attempts
	PacingDelay      time.Duration // Delay after each inbound message
	HandshakeTimeout time.Duration // WebSocket dial timeout
}

// errorFrame is the notification sent to subscribers when an upstream
// message cannot be decoded.
type errorFrame struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}
