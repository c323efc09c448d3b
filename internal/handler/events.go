package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/avolov/imgd/internal/api"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events handles GET /events -- upgrades to a websocket and relays
// computed events from the pub/sub channel until the client disconnects.
// The write pump runs in the handler itself: the request context dies as
// soon as ServeHTTP returns, so nothing about the hijacked connection may
// hang off it.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	sub := h.Cache.Subscribe(context.Background())
	if sub == nil {
		api.Unavailable(w, "events require a configured redis address")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		// Upgrade has already written an error response.
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer sub.Close()

	// Reader goroutine: only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
