package record

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// statusPushInterval paces the websocket status stream.
const statusPushInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StatusStream pushes the session status over a websocket until the
// client disconnects. Error events are interleaved as they occur.
func (s *Service) StatusStream(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warnf(`websocket upgrade failed: %v`, err)
		return
	}
	defer conn.Close()

	// Reader goroutine only notices the disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	session := s.Session()
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case event := <-session.Errors():
			if err := writeJSON(conn, gin.H{`type`: `error`, `event`: event}); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeJSON(conn, gin.H{`type`: `status`, `status`: session.Status()}); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, body gin.H) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
