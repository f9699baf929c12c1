package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/relay/src/crdt"
	"github.com/boardsync/relay/src/metrics"
	"github.com/boardsync/relay/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu          sync.Mutex
	written     [][]byte
	closeCode   int
	closeReason string
	readCh      chan []byte
	closed      bool
	closedCh    chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-m.readCh:
		return data, nil
	case <-m.closedCh:
		return nil, errors.New("connection closed")
	}
}

func (m *mockConn) WriteMessage(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, data)
	return nil
}

func (m *mockConn) WriteClose(code int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCode = code
	m.closeReason = reason
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]byte, len(m.written))
	copy(cp, m.written)
	return cp
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return New(crdt.NewLogEngine(), zerolog.Nop(), metrics.New())
}

func joinClient(t *testing.T, h *Hub, id, roomID string) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	c := NewClient(id, types.Identity{Subject: "user-" + id}, roomID, conn)
	h.Join(c)
	go c.WritePump()
	t.Cleanup(c.Close)
	return c, conn
}

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	h := newTestHub(t)

	r1 := h.GetOrCreate("board-abc")
	r2 := h.GetOrCreate("board-abc")
	assert.Same(t, r1, r2)
	assert.Same(t, r1.Doc(), r2.Doc())
	assert.Equal(t, 1, h.RoomCount())
}

// N simultaneous first-joins to the same new room must end up sharing one
// document instance.
func TestConcurrentCreationRace(t *testing.T) {
	h := newTestHub(t)

	const n = 32
	rooms := make([]*Room, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = h.GetOrCreate("board-racy")
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, h.RoomCount())
	for i := 1; i < n; i++ {
		assert.Same(t, rooms[0], rooms[i])
		assert.Same(t, rooms[0].Doc(), rooms[i].Doc())
	}
}

func TestJoinLeaveCounts(t *testing.T) {
	h := newTestHub(t)

	a, _ := joinClient(t, h, "c1", "board-room1")
	joinClient(t, h, "c2", "board-room1")
	joinClient(t, h, "c3", "board-room2")

	assert.Equal(t, 2, h.RoomCount())
	assert.Equal(t, 3, h.ConnectionCount())

	h.Leave(a)
	assert.Equal(t, 2, h.ConnectionCount())
	// Leaving never removes the room immediately.
	assert.Equal(t, 2, h.RoomCount())
}

func TestEvictIfIdleRespectsTimeout(t *testing.T) {
	h := newTestHub(t)

	c, _ := joinClient(t, h, "c1", "board-idle")
	h.Leave(c)

	// Idle but within the grace window: retained.
	assert.False(t, h.EvictIfIdle("board-idle", time.Hour))
	assert.Equal(t, 1, h.RoomCount())

	// Past the timeout: evicted.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, h.EvictIfIdle("board-idle", 10*time.Millisecond))
	assert.Equal(t, 0, h.RoomCount())
}

func TestEvictNeverRemovesOccupiedRoom(t *testing.T) {
	h := newTestHub(t)

	joinClient(t, h, "c1", "board-busy")
	time.Sleep(20 * time.Millisecond)

	assert.False(t, h.EvictIfIdle("board-busy", 0))
	assert.Equal(t, 1, h.RoomCount())
}

func TestRoomRegainedBeforeTimeoutSurvives(t *testing.T) {
	h := newTestHub(t)

	c, _ := joinClient(t, h, "c1", "board-refresh")
	room := h.GetOrCreate("board-refresh")
	h.Leave(c)

	// Page-refresh reconnect within the grace window.
	joinClient(t, h, "c2", "board-refresh")
	time.Sleep(20 * time.Millisecond)

	assert.False(t, h.EvictIfIdle("board-refresh", 10*time.Millisecond))
	assert.Same(t, room, h.GetOrCreate("board-refresh"))
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	h := newTestHub(t)

	c1, _ := joinClient(t, h, "c1", "board-old")
	h.Leave(c1)
	time.Sleep(30 * time.Millisecond)

	c2, _ := joinClient(t, h, "c2", "board-fresh")
	h.Leave(c2)

	evicted := h.Sweep(20 * time.Millisecond)
	assert.Equal(t, 1, evicted)

	_, oldExists := h.Room("board-old")
	_, freshExists := h.Room("board-fresh")
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestMergeAndBroadcastNoSelfEcho(t *testing.T) {
	h := newTestHub(t)

	sender, senderConn := joinClient(t, h, "sender", "board-echo")
	_, peerConn1 := joinClient(t, h, "peer1", "board-echo")
	_, peerConn2 := joinClient(t, h, "peer2", "board-echo")

	room := h.GetOrCreate("board-echo")
	update := crdt.EncodeUpdate([]crdt.Entry{{Actor: "sender", Seq: 1, Payload: []byte("stroke")}})
	require.NoError(t, room.MergeAndBroadcast(update, sender))

	assert.Eventually(t, func() bool {
		return len(peerConn1.frames()) == 1 && len(peerConn2.frames()) == 1
	}, time.Second, 5*time.Millisecond, "peers should receive the relayed frame")
	assert.Empty(t, senderConn.frames(), "sender must not receive its own update")
}

func TestAwarenessReplayedToNewJoiner(t *testing.T) {
	h := newTestHub(t)

	announcer, _ := joinClient(t, h, "announcer", "board-aware")
	room := h.GetOrCreate("board-aware")
	room.BroadcastAwareness([]byte(`{"name":"alice"}`), announcer)

	frames := room.AwarenessFrames()
	require.Len(t, frames, 1)

	// Awareness entries are dropped with the connection.
	h.Leave(announcer)
	assert.Empty(t, room.AwarenessFrames())
}

func TestCloseAllSendsGoingAway(t *testing.T) {
	h := newTestHub(t)

	_, conn1 := joinClient(t, h, "c1", "board-a")
	_, conn2 := joinClient(t, h, "c2", "board-b")

	h.CloseAll(1001, "Server shutting down")

	for _, conn := range []*mockConn{conn1, conn2} {
		conn.mu.Lock()
		assert.Equal(t, 1001, conn.closeCode)
		assert.Equal(t, "Server shutting down", conn.closeReason)
		conn.mu.Unlock()
	}
}

func TestUptime(t *testing.T) {
	h := newTestHub(t)
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, h.Uptime(), time.Duration(0))
}
