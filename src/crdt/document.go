package crdt

import (
	"fmt"
	"sync"
)

// logDocument is an update-log CRDT: the document state is the set of all
// entries ever applied, keyed by (actor, seq). Merge is set union, which is
// commutative, associative and idempotent by construction. The state
// vector is the contiguous per-actor frontier, so Diff can hand a peer
// exactly the entries above what it already holds.
type logDocument struct {
	name string

	mu      sync.RWMutex
	entries map[string]map[uint64][]byte // actor -> seq -> payload
}

// LogEngine creates update-log documents. It is the default engine wired
// into the relay; any Engine honoring the Document contract is
// substitutable.
type LogEngine struct{}

// NewLogEngine returns the default document engine.
func NewLogEngine() *LogEngine { return &LogEngine{} }

// NewDocument creates an empty document named after the room.
func (e *LogEngine) NewDocument(name string) Document {
	return &logDocument{
		name:    name,
		entries: make(map[string]map[uint64][]byte),
	}
}

func (d *logDocument) Name() string { return d.name }

// ApplyUpdate merges an update fragment. Entries already present are
// skipped, making reapplication a no-op.
func (d *logDocument) ApplyUpdate(update []byte) error {
	entries, err := DecodeUpdate(update)
	if err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		seqs, ok := d.entries[e.Actor]
		if !ok {
			seqs = make(map[uint64][]byte)
			d.entries[e.Actor] = seqs
		}
		if _, exists := seqs[e.Seq]; exists {
			continue
		}
		seqs[e.Seq] = e.Payload
	}
	return nil
}

// StateVector returns the encoded contiguous frontier per actor.
func (d *logDocument) StateVector() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return EncodeStateVector(d.frontierLocked())
}

// Diff returns all entries beyond the remote peer's frontier.
func (d *logDocument) Diff(remoteStateVector []byte) ([]byte, error) {
	remote, err := DecodeStateVector(remoteStateVector)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	var missing []Entry
	for actor, seqs := range d.entries {
		have := remote[actor]
		for seq, payload := range seqs {
			if seq > have {
				missing = append(missing, Entry{Actor: actor, Seq: seq, Payload: payload})
			}
		}
	}
	return EncodeUpdate(missing), nil
}

// Snapshot encodes every entry as one update fragment.
func (d *logDocument) Snapshot() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var all []Entry
	for actor, seqs := range d.entries {
		for seq, payload := range seqs {
			all = append(all, Entry{Actor: actor, Seq: seq, Payload: payload})
		}
	}
	return EncodeUpdate(all)
}

// frontierLocked computes the highest contiguous sequence per actor.
// Callers must hold at least a read lock.
func (d *logDocument) frontierLocked() StateVector {
	sv := make(StateVector, len(d.entries))
	for actor, seqs := range d.entries {
		var frontier uint64
		for {
			if _, ok := seqs[frontier+1]; !ok {
				break
			}
			frontier++
		}
		if frontier > 0 {
			sv[actor] = frontier
		}
	}
	return sv
}
