// Package protocol defines the binary sync protocol spoken over each room
// connection. Frames carry either document sync messages (state vectors and
// update fragments) or awareness payloads. The relay routes frames without
// interpreting update or awareness contents.
package protocol

// Top-level message types.
const (
	MessageSync      = 0
	MessageAwareness = 1
)

// Sync message subtypes.
const (
	// SyncStep1 carries a state vector; the receiver answers with a
	// SyncStep2 containing everything the sender is missing.
	SyncStep1 = 0
	// SyncStep2 carries the update fragment answering a SyncStep1.
	SyncStep2 = 1
	// SyncUpdate carries an incremental update fragment.
	SyncUpdate = 2
)

// Frame is a decoded protocol message.
type Frame struct {
	Type     int
	SyncType int // valid only when Type == MessageSync
	Payload  []byte
}

// IsUpdate reports whether the frame carries an update fragment to merge
// into the room document.
func (f *Frame) IsUpdate() bool {
	return f.Type == MessageSync && (f.SyncType == SyncStep2 || f.SyncType == SyncUpdate)
}
