// Package hub holds the in-memory room registry, the per-room connection
// sets and the idle reaper. The registry map is the process's only shared
// mutable resource; one mutex serializes every mutation so lookup-or-create
// and membership changes are atomic with respect to each other.
package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boardsync/relay/src/crdt"
	"github.com/boardsync/relay/src/metrics"
	"github.com/boardsync/relay/src/types"
)

// Hub is the room registry.
type Hub struct {
	engine    crdt.Engine
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	startedAt time.Time

	mu    sync.RWMutex
	rooms map[string]*Room
}

// New creates an empty registry backed by the given document engine.
func New(engine crdt.Engine, logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		engine:    engine,
		logger:    logger.With().Str("component", "hub").Logger(),
		metrics:   m,
		startedAt: time.Now(),
		rooms:     make(map[string]*Room),
	}
}

// GetOrCreate returns the room for the given ID, creating it with a fresh
// document when absent. Check-then-create happens under one lock
// acquisition, so concurrent first-joins share a single document.
func (h *Hub) GetOrCreate(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getOrCreateLocked(roomID)
}

func (h *Hub) getOrCreateLocked(roomID string) *Room {
	if room, ok := h.rooms[roomID]; ok {
		return room
	}
	room := newRoom(roomID, h.engine.NewDocument(roomID), h.logger)
	h.rooms[roomID] = room
	h.metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.logger.Info().Str("room", roomID).Msg("room created")
	return room
}

// Join registers a client into its room, creating the room if needed.
func (h *Hub) Join(c *Client) *Room {
	h.mu.Lock()
	room := h.getOrCreateLocked(c.RoomID)
	room.add(c)
	h.mu.Unlock()

	h.metrics.ConnectionsTotal.Inc()
	h.metrics.ActiveConnections.Inc()
	h.logger.Info().
		Str("room", c.RoomID).
		Str("conn_id", c.ID).
		Str("subject", c.Identity.Truncated()).
		Msg("client joined")
	return room
}

// Leave removes a client from its room and refreshes the room's
// last-activity timestamp, starting the idle countdown if now empty.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.RoomID]
	if ok {
		room.remove(c)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.metrics.ActiveConnections.Dec()
	h.logger.Info().
		Str("room", c.RoomID).
		Str("conn_id", c.ID).
		Str("subject", c.Identity.Truncated()).
		Int("remaining", room.ConnCount()).
		Msg("client left")
}

// Room returns the room for the given ID, if present.
func (h *Hub) Room(roomID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ConnectionCount returns the total number of connections across rooms.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, room := range h.rooms {
		total += room.ConnCount()
	}
	return total
}

// Rooms returns diagnostic info for every active room.
func (h *Hub) Rooms() []types.RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	infos := make([]types.RoomInfo, 0, len(h.rooms))
	for _, room := range h.rooms {
		infos = append(infos, room.Info())
	}
	return infos
}

// EvictIfIdle removes a room only if it has no connections and has been
// idle at least the given timeout. Returns whether the room was evicted.
func (h *Hub) EvictIfIdle(roomID string, timeout time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if room.ConnCount() > 0 {
		return false
	}
	idle := time.Since(room.LastActivity())
	if idle < timeout {
		return false
	}

	delete(h.rooms, roomID)
	h.metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.metrics.RoomsEvicted.Inc()
	h.logger.Info().
		Str("room", roomID).
		Dur("idle", idle).
		Msg("room evicted")
	return true
}

// Sweep runs one reaper pass over every room and returns the number of
// evictions.
func (h *Hub) Sweep(timeout time.Duration) int {
	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	evicted := 0
	for _, id := range ids {
		if h.EvictIfIdle(id, timeout) {
			evicted++
		}
	}
	return evicted
}

// CloseAll closes every connection in every room with the given close
// code. Used on shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		for _, c := range room.clients() {
			c.CloseWith(code, reason)
		}
	}
}

// Uptime returns the time elapsed since the hub was created.
func (h *Hub) Uptime() time.Duration {
	return time.Since(h.startedAt)
}
