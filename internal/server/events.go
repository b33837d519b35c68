package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// handleEvents upgrades the connection to a websocket and forwards job
// event payloads from the queue's event subject until the client leaves.
func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		respondError(c, http.StatusServiceUnavailable, "event stream is not available")

		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed: %v", err)

		return
	}

	defer func() {
		closeErr := conn.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close websocket: %v", closeErr)
		}
	}()

	messages := make(chan *nats.Msg, 64)

	sub, err := s.events.ChanSubscribe(s.cfg.Queue.EventsSubject, messages)
	if err != nil {
		s.log.Error("Failed to subscribe to job events: %v", err)

		return
	}

	defer func() {
		unsubErr := sub.Unsubscribe()
		if unsubErr != nil {
			s.log.Warn("Failed to unsubscribe from job events: %v", unsubErr)
		}
	}()

	// The read loop exists only to notice when the client goes away.
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			_, _, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-messages:
			writeErr := conn.WriteMessage(websocket.TextMessage, msg.Data)
			if writeErr != nil {
				return
			}
		}
	}
}
