package localapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams controller snapshots: one on connect and one after
// every change.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	l := s.l.With("handler", "Events")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	l.Debug("subscriber connected")

	ch := s.c.Subscribe()
	defer s.c.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				l.Debug("subscriber went away", "err", err)
				cancel()
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.c.Snapshot()); err != nil {
		l.Error("failed to write snapshot", "err", err)
		return
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s.c.Snapshot()); err != nil {
				l.Error("failed to write snapshot", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				l.Error("failed to write keepalive", "err", err)
				return
			}
		}
	}
}
