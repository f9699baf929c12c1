package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boardsync/relay/src/crdt"
	"github.com/boardsync/relay/src/protocol"
	"github.com/boardsync/relay/src/types"
)

// Room is one collaboration session: a shared document plus the set of
// connections attached to it. Rooms are created lazily on first join and
// evicted by the reaper once empty and idle.
type Room struct {
	ID  string
	doc crdt.Document

	createdAt time.Time
	logger    zerolog.Logger

	mu           sync.RWMutex
	conns        map[*Client]struct{}
	awareness    map[string][]byte // client ID -> latest awareness payload
	lastActivity time.Time
}

func newRoom(id string, doc crdt.Document, logger zerolog.Logger) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		doc:          doc,
		createdAt:    now,
		logger:       logger,
		conns:        make(map[*Client]struct{}),
		awareness:    make(map[string][]byte),
		lastActivity: now,
	}
}

// Doc returns the room's document.
func (r *Room) Doc() crdt.Document { return r.doc }

// Touch refreshes the last-activity timestamp.
func (r *Room) Touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// LastActivity returns when the room last saw a join, leave or update.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// ConnCount returns the number of attached connections.
func (r *Room) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Info returns diagnostic metadata for the admin endpoint.
func (r *Room) Info() types.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.RoomInfo{
		RoomID:       r.ID,
		Connections:  len(r.conns),
		LastActivity: r.lastActivity,
		CreatedAt:    r.createdAt,
	}
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

func (r *Room) remove(c *Client) {
	r.mu.Lock()
	delete(r.conns, c)
	delete(r.awareness, c.ID)
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// MergeAndBroadcast merges an update fragment into the document and relays
// it to every other connection in the room exactly once. The merge and the
// peer snapshot happen under the room lock, preserving per-room ordering.
func (r *Room) MergeAndBroadcast(update []byte, from *Client) error {
	frame := protocol.EncodeSyncUpdate(update)

	r.mu.Lock()
	if err := r.doc.ApplyUpdate(update); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("room %s: %w", r.ID, err)
	}
	r.lastActivity = time.Now()
	peers := r.peersLocked(from)
	r.mu.Unlock()

	r.deliver(peers, frame)
	return nil
}

// BroadcastAwareness records the sender's latest awareness payload and
// relays it to every other connection. Awareness never touches the
// document merge path.
func (r *Room) BroadcastAwareness(payload []byte, from *Client) {
	frame := protocol.EncodeAwareness(payload)

	r.mu.Lock()
	r.awareness[from.ID] = payload
	r.lastActivity = time.Now()
	peers := r.peersLocked(from)
	r.mu.Unlock()

	r.deliver(peers, frame)
}

// AwarenessFrames returns the stored awareness payloads of current
// members, framed for delivery to a new joiner.
func (r *Room) AwarenessFrames() [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frames := make([][]byte, 0, len(r.awareness))
	for _, payload := range r.awareness {
		frames = append(frames, protocol.EncodeAwareness(payload))
	}
	return frames
}

// clients returns a snapshot of all members.
func (r *Room) clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// peersLocked returns all members except the given one. Callers must hold
// the room lock.
func (r *Room) peersLocked(except *Client) []*Client {
	peers := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		if c != except {
			peers = append(peers, c)
		}
	}
	return peers
}

func (r *Room) deliver(peers []*Client, frame []byte) {
	for _, peer := range peers {
		if !peer.TrySend(frame) {
			r.logger.Warn().
				Str("room", r.ID).
				Str("conn_id", peer.ID).
				Msg("send buffer full, dropping frame")
		}
	}
}
