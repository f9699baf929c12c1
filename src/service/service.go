// Package service wires authenticated WebSocket connections to rooms and
// serves the HTTP health/admin surface. Each connection walks a fixed
// state machine: authenticate, sync, relay, close. All failures are
// contained at the connection boundary.
package service

import (
	"fmt"
	"regexp"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/boardsync/relay/config"
	"github.com/boardsync/relay/src/auth"
	"github.com/boardsync/relay/src/hub"
	"github.com/boardsync/relay/src/metrics"
	"github.com/boardsync/relay/src/protocol"
	"github.com/boardsync/relay/src/types"
)

// Service handles connection lifecycle and the admin HTTP endpoints.
type Service struct {
	hub      *hub.Hub
	verifier *auth.Verifier
	cfg      *config.Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	version  string

	roomPattern *regexp.Regexp
	upgrader    websocket.FastHTTPUpgrader
}

// New creates the service. Fails when the configured room pattern does not
// compile.
func New(h *hub.Hub, verifier *auth.Verifier, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger, version string) (*Service, error) {
	pattern, err := regexp.Compile(cfg.RoomPattern())
	if err != nil {
		return nil, fmt.Errorf("room pattern: %w", err)
	}
	return &Service{
		hub:         h,
		verifier:    verifier,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With().Str("component", "service").Logger(),
		version:     version,
		roomPattern: pattern,
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(ctx *fasthttp.RequestCtx) bool { return true },
		},
	}, nil
}

// ValidRoomID reports whether a room identifier matches the required
// namespace pattern.
func (s *Service) ValidRoomID(roomID string) bool {
	return s.roomPattern.MatchString(roomID)
}

// HandleConnection drives one connection from authentication through
// relay to close. It blocks until the connection ends and always leaves
// the room membership consistent.
func (s *Service) HandleConnection(conn types.Conn, roomID, token string) {
	if !s.ValidRoomID(roomID) {
		s.logger.Warn().Str("room", roomID).Msg("rejected: invalid room id")
		conn.WriteClose(websocket.ClosePolicyViolation,
			"Invalid room ID format: expected "+s.cfg.RoomPattern())
		conn.Close()
		return
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.metrics.AuthFailures.Inc()
		s.logger.Warn().Str("room", roomID).Msg("rejected: authentication failed")
		conn.WriteClose(websocket.ClosePolicyViolation, "Authentication failed")
		conn.Close()
		return
	}

	client := hub.NewClient(uuid.New().String(), *identity, roomID, conn)
	room := s.hub.Join(client)
	go client.WritePump()

	s.initialSync(room, client)
	s.readLoop(room, client, conn)

	s.hub.Leave(client)
	client.Close()
}

// initialSync starts the state-vector exchange with the new joiner and
// replays the current awareness of its peers.
func (s *Service) initialSync(room *hub.Room, client *hub.Client) {
	client.TrySend(protocol.EncodeSyncStep1(room.Doc().StateVector()))
	for _, frame := range room.AwarenessFrames() {
		client.TrySend(frame)
	}
}

// readLoop relays frames until the transport closes or an unrecoverable
// protocol error occurs.
func (s *Service) readLoop(room *hub.Room, client *hub.Client, conn types.Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug().
				Str("room", room.ID).
				Str("conn_id", client.ID).
				Err(err).
				Msg("connection closed")
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn().
				Str("room", room.ID).
				Str("conn_id", client.ID).
				Err(err).
				Msg("protocol error")
			client.CloseWith(websocket.CloseInternalServerErr, "Protocol error")
			return
		}

		switch {
		case frame.Type == protocol.MessageSync && frame.SyncType == protocol.SyncStep1:
			diff, err := room.Doc().Diff(frame.Payload)
			if err != nil {
				s.logger.Warn().
					Str("room", room.ID).
					Str("conn_id", client.ID).
					Err(err).
					Msg("bad state vector")
				client.CloseWith(websocket.CloseInternalServerErr, "Sync error")
				return
			}
			client.TrySend(protocol.EncodeSyncStep2(diff))
			room.Touch()

		case frame.IsUpdate():
			if err := room.MergeAndBroadcast(frame.Payload, client); err != nil {
				s.logger.Warn().
					Str("room", room.ID).
					Str("conn_id", client.ID).
					Err(err).
					Msg("merge failed")
				client.CloseWith(websocket.CloseInternalServerErr, "Merge error")
				return
			}
			s.metrics.UpdatesRelayed.Inc()

		case frame.Type == protocol.MessageAwareness:
			room.BroadcastAwareness(frame.Payload, client)
		}
	}
}
