package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"trackstyler/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type engineLogMessage struct {
	Stream  string `json:"stream"`
	Message string `json:"message"`
}

// EngineLogsHandler streams engine log lines to the client over a websocket.
func (h *APIHandler) EngineLogsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	entries, cancel := h.session.Subscribe()
	defer cancel()

	// Read pump: we never expect client messages, but reading is the only
	// way to notice the peer closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			msg := engineLogMessage{Stream: entry.Stream, Message: entry.Message}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("engine log write failed", logger.ErrorField(err))
				return
			}
		case <-closed:
			return
		}
	}
}
