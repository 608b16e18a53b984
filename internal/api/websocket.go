package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"engram/internal/logging"
)

// upgrader accepts connections from any origin; the push
// surface is a read-only mirror of the event broadcaster, not an
// authenticated control channel, so origin checking is permissive here and
// left to any reverse proxy in front of the daemon.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWebsocket mirrors the event broadcaster onto a websocket connection
//. One
// broadcaster subscription per connection; closing either side tears down
// the other.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Cancel(sub.ID)

	// Drain and discard any client-sent frames so the read side notices a
	// close or error promptly; this channel carries no client->server
	// traffic.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
