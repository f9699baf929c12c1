package service

import (
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
)

// Handler returns the process's single request handler: WebSocket upgrade
// requests go to the sync endpoint, everything else to the fiber app.
func (s *Service) Handler() fasthttp.RequestHandler {
	fiberHandler := s.httpApp().Handler()
	wsHandler := s.upgradeHandler()

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if strings.EqualFold(upgrade, "websocket") {
			wsHandler(ctx)
			return
		}
		fiberHandler(ctx)
	}
}

// upgradeHandler accepts the WebSocket upgrade and hands the connection to
// the state machine. Room and token come from the connection URL's query
// parameters; validation happens after the upgrade so rejections arrive as
// close frames with a code and reason the client library can interpret.
func (s *Service) upgradeHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		roomID := string(ctx.QueryArgs().Peek("room"))
		token := string(ctx.QueryArgs().Peek("token"))

		err := s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			s.HandleConnection(newWSConn(conn, s.cfg.WriteTimeout), roomID, token)
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// wsConn adapts a fasthttp websocket connection to types.Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsConn) WriteClose(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
