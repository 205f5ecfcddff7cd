package wshandler

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"warehouse-notify/internal/middleware"
	"warehouse-notify/internal/realtime"
)

type WSHandler struct {
	bridge *realtime.Bridge
}

func NewWSHandler(bridge *realtime.Bridge) *WSHandler {
	return &WSHandler{bridge: bridge}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: tighten to the configured front-end origins
		return true
	},
}

// HandleNotifications upgrades HTTP -> WebSocket and hands the connection to
// the realtime bridge until the client goes away.
func (h *WSHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	log.Printf("[Bridge][WS] userID=%s connected", userID)
	h.bridge.ServeConn(r.Context(), conn, userID)
}
