package types

import "time"

// Identity is the verified subject of a connection, extracted from the
// auth token at join time. Immutable for the life of the connection.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// Truncated returns a shortened subject suitable for log lines.
func (i Identity) Truncated() string {
	if len(i.Subject) <= 8 {
		return i.Subject
	}
	return i.Subject[:8]
}

// RoomInfo holds diagnostic metadata about an active room.
type RoomInfo struct {
	RoomID       string    `json:"roomId"`
	Connections  int       `json:"connections"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status           string    `json:"status"`
	UptimeSeconds    float64   `json:"uptime"`
	ActiveRooms      int       `json:"activeRooms"`
	TotalConnections int       `json:"totalConnections"`
	Timestamp        time.Time `json:"timestamp"`
	Version          string    `json:"version"`
}

// Conn abstracts a WebSocket connection for testability.
// Frames are opaque binary payloads.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	WriteClose(code int, reason string) error
	Close() error
}
