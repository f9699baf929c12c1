// Package crdt provides the conflict-free replicated document engine used
// by the relay. Documents merge opaque binary update fragments; merging any
// set of fragments in any order, any number of times, converges every
// replica to the same state.
package crdt

// Document is one replicated document. Implementations must be safe for
// concurrent use.
type Document interface {
	// Name returns the document's logical name (the room ID).
	Name() string

	// ApplyUpdate merges an update fragment into the document.
	// Merging is commutative, associative and idempotent.
	ApplyUpdate(update []byte) error

	// StateVector returns a compact summary of the updates this document
	// already holds, suitable for passing to a remote peer's Diff.
	StateVector() []byte

	// Diff returns an update fragment containing everything the remote
	// peer is missing, given its state vector. An empty or nil state
	// vector yields the full snapshot.
	Diff(remoteStateVector []byte) ([]byte, error)

	// Snapshot encodes the full document state as a single update
	// fragment. The encoding is deterministic: converged replicas
	// produce byte-identical snapshots.
	Snapshot() []byte
}

// Engine creates documents. The relay holds exactly one document per room.
type Engine interface {
	NewDocument(name string) Document
}
