package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/gridlocator/gridlocator/gridlog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WatchServer runs the /watch WebSocket endpoint on its own net/http
// listener — fasthttp has no native WebSocket support, so this is a
// separate process port from Server.ListenAndServe's REST surface.
type WatchServer struct {
	broadcast *Broadcaster
}

// NewWatchServer streams every event published to broadcast to connected
// clients as JSON text frames.
func NewWatchServer(broadcast *Broadcaster) *WatchServer {
	return &WatchServer{broadcast: broadcast}
}

// ListenAndServe starts the WebSocket server on addr and blocks.
func (w *WatchServer) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", w.handleWatch)
	return http.ListenAndServe(addr, mux)
}

func (w *WatchServer) handleWatch(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		gridlog.L().Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := w.broadcast.subscribe()
	defer unsubscribe()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			gridlog.L().Warnw("failed to marshal descriptor event for websocket", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
